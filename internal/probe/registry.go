// Package probe declares named read-only environment checks and runs them in
// registration order.
package probe

import (
	"context"
	"fmt"
	"iter"

	"github.com/mattjoyce/flightcheck/internal/result"
)

// Probe is a named read-only environment check. Predicates must not mutate
// anything: the executor re-runs probes freely for diagnostics.
type Probe struct {
	Name      string
	Severity  result.Severity
	Predicate func(ctx context.Context) result.Result
}

// DuplicateProbeError is returned when a probe name is registered twice.
type DuplicateProbeError struct {
	Name string
}

func (e *DuplicateProbeError) Error() string {
	return fmt.Sprintf("probe %q already registered", e.Name)
}

// Registry holds the process-wide probe declarations. Register everything at
// startup; the registry is read-only afterwards, so no locking is needed.
type Registry struct {
	byName map[string]int
	probes []Probe
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a probe. Fails with DuplicateProbeError on a name collision.
func (r *Registry) Register(p Probe) error {
	if p.Name == "" {
		return fmt.Errorf("probe name is empty")
	}
	if p.Predicate == nil {
		return fmt.Errorf("probe %q has no predicate", p.Name)
	}
	if _, exists := r.byName[p.Name]; exists {
		return &DuplicateProbeError{Name: p.Name}
	}
	r.byName[p.Name] = len(r.probes)
	r.probes = append(r.probes, p)
	return nil
}

// Get returns a probe by name.
func (r *Registry) Get(name string) (Probe, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Probe{}, false
	}
	return r.probes[i], true
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	return len(r.probes)
}

// RunAll returns a lazy, restartable sequence of (probe, result) pairs in
// registration order. Each iteration evaluates predicates afresh.
func (r *Registry) RunAll(ctx context.Context) iter.Seq2[Probe, result.Result] {
	return func(yield func(Probe, result.Result) bool) {
		for _, p := range r.probes {
			if !yield(p, p.Predicate(ctx)) {
				return
			}
		}
	}
}
