package domain

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "acme", "acme"},
		{"mixed case and space", "Acme Store", "acme-store"},
		{"diacritics folded", "Crème Brûlée!", "creme-brulee"},
		{"punctuation collapses", "my---cool___site", "my-cool-site"},
		{"leading trailing junk", "  --Hello!--  ", "hello"},
		{"digits kept", "web3 app 2024", "web3-app-2024"},
		{"empty", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyTruncatesToLabelLength(t *testing.T) {
	got := Slugify(strings.Repeat("a", 100))
	if len(got) != maxSlugLen {
		t.Fatalf("len = %d, want %d", len(got), maxSlugLen)
	}
	if !ValidSlug(got) {
		t.Fatalf("truncated slug %q not valid", got)
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"acme", true},
		{"acme-2", true},
		{"", false},
		{"-acme", false},
		{"acme-", false},
		{"Acme", false},
		{"acme.store", false},
		{strings.Repeat("a", 64), false},
	}
	for _, tt := range tests {
		if got := ValidSlug(tt.slug); got != tt.want {
			t.Fatalf("ValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}
