package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlansYAML []byte

// PlanSpec describes the template repository path and the module patch files
// applied on top of it for one plan.
type PlanSpec struct {
	Template string   `yaml:"template"`
	Patches  []string `yaml:"patches"`
}

// PlanCatalog is the static plan configuration. It is loaded once and never
// mutated at runtime.
type PlanCatalog struct {
	BasePatches []string            `yaml:"base_patches"`
	Plans       map[string]PlanSpec `yaml:"plans"`
}

// DefaultPlanCatalog parses the embedded catalog. Panics on a corrupt embed,
// which can only happen at build time.
func DefaultPlanCatalog() *PlanCatalog {
	cat, err := ParsePlanCatalog(defaultPlansYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded plans.yaml: %v", err))
	}
	return cat
}

// LoadPlanCatalog reads a catalog override from disk.
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog parses YAML catalog content.
func ParsePlanCatalog(data []byte) (*PlanCatalog, error) {
	var cat PlanCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(cat.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog defines no plans")
	}
	return &cat, nil
}

// Template returns the template path for plan, falling back to the website
// template for unknown plans.
func (c *PlanCatalog) Template(plan Plan) string {
	if spec, ok := c.Plans[string(plan)]; ok && spec.Template != "" {
		return spec.Template
	}
	return c.Plans[string(PlanWebsite)].Template
}

// Patches returns the base patches plus the plan-specific ones, in order.
func (c *PlanCatalog) Patches(plan Plan) []string {
	patches := make([]string, 0, len(c.BasePatches)+4)
	patches = append(patches, c.BasePatches...)
	if spec, ok := c.Plans[string(plan)]; ok {
		patches = append(patches, spec.Patches...)
	}
	return patches
}
