package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/mattjoyce/flightcheck/internal/result"
)

func pass(name string) Probe {
	return Probe{
		Name:      name,
		Severity:  result.Blocking,
		Predicate: func(context.Context) result.Result { return result.OK() },
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(pass("node-version")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := r.Register(pass("node-version"))
	var dup *DuplicateProbeError
	if !errors.As(err, &dup) || dup.Name != "node-version" {
		t.Fatalf("expected DuplicateProbeError for node-version, got %v", err)
	}
}

func TestRunAllOrderAndRestartability(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	calls := 0
	names := []string{"node-version", "android-sdk", "xcode-select"}
	for _, n := range names {
		err := r.Register(Probe{
			Name:     n,
			Severity: result.Warning,
			Predicate: func(context.Context) result.Result {
				calls++
				return result.OK()
			},
		})
		if err != nil {
			t.Fatalf("Register %s: %v", n, err)
		}
	}

	var seen []string
	for p, res := range r.RunAll(context.Background()) {
		seen = append(seen, p.Name)
		if res.Failed() {
			t.Fatalf("probe %s failed: %#v", p.Name, res)
		}
	}
	if len(seen) != 3 || seen[0] != names[0] || seen[1] != names[1] || seen[2] != names[2] {
		t.Fatalf("registration order not preserved: %v", seen)
	}

	// Restartable: a second iteration re-evaluates every predicate.
	for range r.RunAll(context.Background()) {
	}
	if calls != 6 {
		t.Fatalf("expected 6 predicate evaluations across two passes, got %d", calls)
	}
}

func TestRunAllIsLazy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	evaluated := map[string]bool{}
	for _, n := range []string{"first", "second"} {
		if err := r.Register(Probe{
			Name:     n,
			Severity: result.Blocking,
			Predicate: func(context.Context) result.Result {
				evaluated[n] = true
				return result.OK()
			},
		}); err != nil {
			t.Fatalf("Register %s: %v", n, err)
		}
	}

	for p := range r.RunAll(context.Background()) {
		if p.Name == "first" {
			break
		}
	}
	if evaluated["second"] {
		t.Fatal("second predicate evaluated despite early break")
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(Probe{Name: ""}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register(Probe{Name: "no-predicate"}); err == nil {
		t.Fatal("expected error for nil predicate")
	}
	if r.Len() != 0 {
		t.Fatalf("invalid probes must not be registered, len=%d", r.Len())
	}
}
