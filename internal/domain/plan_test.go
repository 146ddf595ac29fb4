package domain

import (
	"reflect"
	"testing"
)

func TestDefaultPlanCatalog(t *testing.T) {
	cat := DefaultPlanCatalog()

	for _, plan := range []Plan{PlanWebsite, PlanWebapp, PlanAuthDB, PlanAI} {
		if _, ok := cat.Plans[string(plan)]; !ok {
			t.Fatalf("catalog missing plan %q", plan)
		}
	}
}

func TestPlanCatalogTemplate(t *testing.T) {
	cat := DefaultPlanCatalog()

	if got := cat.Template(PlanAuthDB); got != "templates/authdb" {
		t.Fatalf("Template(authdb) = %q", got)
	}
	if got := cat.Template(Plan("bogus")); got != "templates/website" {
		t.Fatalf("Template(bogus) = %q, want website fallback", got)
	}
}

func TestPlanCatalogPatches(t *testing.T) {
	cat := DefaultPlanCatalog()

	tests := []struct {
		plan Plan
		want []string
	}{
		{PlanWebsite, []string{"package.json", "README.md"}},
		{PlanWebapp, []string{"package.json", "README.md", "src/auth/config.ts"}},
		{PlanAuthDB, []string{"package.json", "README.md", "src/auth/config.ts", "src/db/schema.ts"}},
		{PlanAI, []string{"package.json", "README.md", "src/ai/config.ts", "src/ai/routes.ts"}},
		{Plan("bogus"), []string{"package.json", "README.md"}},
	}
	for _, tt := range tests {
		if got := cat.Patches(tt.plan); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Patches(%s) = %v, want %v", tt.plan, got, tt.want)
		}
	}
}

func TestParsePlanCatalogRejectsEmpty(t *testing.T) {
	if _, err := ParsePlanCatalog([]byte("base_patches: []\n")); err == nil {
		t.Fatalf("expected error for catalog without plans")
	}
}
