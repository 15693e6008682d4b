// Package step defines the unit of pipeline work and the ordered catalog of
// declared steps.
package step

import (
	"fmt"
	"slices"
	"time"
)

// Category groups steps for trigger selection (pull requests never run
// deploy-category steps, etc).
type Category string

const (
	CategoryCheckout Category = "checkout"
	CategoryInstall  Category = "install"
	CategorySigning  Category = "signing"
	CategoryBuild    Category = "build"
	CategoryTest     Category = "test"
	CategoryDeploy   Category = "deploy"
)

// KnownCategories lists every valid category, in pipeline order.
var KnownCategories = []Category{
	CategoryCheckout, CategoryInstall, CategorySigning,
	CategoryBuild, CategoryTest, CategoryDeploy,
}

// Platform is a build target.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformBoth    Platform = "both"
)

// Environment is a deployment target.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Step is one unit of pipeline work. Steps are declared once at startup and
// are read-only afterwards.
type Step struct {
	ID            string
	Title         string
	Category      Category
	Platforms     []Platform    // empty means all platforms
	Environments  []Environment // empty means all environments
	Prerequisites []string
	Probes        []string // registry probe names checked before the action runs
	Command       string
	Args          []string
	Timeout       time.Duration
	SoftExitCodes []int
	Idempotent    bool
	Retryable     bool
}

// AppliesTo reports whether the step participates in a run for the given
// platform and environment. A run for PlatformBoth takes every step.
func (s Step) AppliesTo(p Platform, e Environment) bool {
	if len(s.Platforms) > 0 && p != PlatformBoth && !slices.Contains(s.Platforms, p) {
		return false
	}
	if len(s.Environments) > 0 && !slices.Contains(s.Environments, e) {
		return false
	}
	return true
}

// DuplicateStepError is returned when a step id is declared twice.
type DuplicateStepError struct {
	ID string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step %q already declared", e.ID)
}

// Catalog is the insertion-ordered set of declared steps. Declaration order
// is the deterministic tie-break for topological sorting, so the catalog
// never reorders.
type Catalog struct {
	byID  map[string]int
	steps []Step
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Add declares a step. Fails with DuplicateStepError on an id collision.
func (c *Catalog) Add(s Step) error {
	if s.ID == "" {
		return fmt.Errorf("step id is empty")
	}
	if _, exists := c.byID[s.ID]; exists {
		return &DuplicateStepError{ID: s.ID}
	}
	c.byID[s.ID] = len(c.steps)
	c.steps = append(c.steps, s)
	return nil
}

// Get returns a step by id.
func (c *Catalog) Get(id string) (Step, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// Steps returns the declared steps in declaration order.
func (c *Catalog) Steps() []Step {
	return slices.Clone(c.steps)
}

// Len returns the number of declared steps.
func (c *Catalog) Len() int {
	return len(c.steps)
}
