// Package result defines the tagged outcome model shared by probes and steps.
package result

import "fmt"

// Code classifies an outcome.
type Code int

const (
	// Success means the probe passed or the step action completed.
	Success Code = iota
	// SoftFailure is a recoverable failure: recorded, dependents still run.
	SoftFailure
	// HardFailure halts all transitive dependents.
	HardFailure
)

func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case SoftFailure:
		return "soft_failure"
	case HardFailure:
		return "hard_failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of a probe predicate or step action.
//
// Transient marks a failure as retry-eligible (network flake, toolchain
// timeout). Deterministic failures (missing file, bad config) must leave it
// false so the executor never wastes attempts on them.
type Result struct {
	Code      Code
	Message   string
	Kind      string // failure kind for remediation lookup, e.g. "timeout", "missing_tool"
	Transient bool
}

// OK returns a success result.
func OK() Result {
	return Result{Code: Success}
}

// Soft returns a soft failure carrying a diagnostic message.
func Soft(message string) Result {
	return Result{Code: SoftFailure, Message: message}
}

// Hard returns a deterministic hard failure.
func Hard(message string) Result {
	return Result{Code: HardFailure, Message: message}
}

// TransientHard returns a hard failure eligible for retry.
func TransientHard(message string) Result {
	return Result{Code: HardFailure, Message: message, Transient: true}
}

// WithKind tags the result with a failure kind used for remediation hints.
func (r Result) WithKind(kind string) Result {
	r.Kind = kind
	return r
}

// Failed reports whether the result is any kind of failure.
func (r Result) Failed() bool {
	return r.Code != Success
}

// IsHard reports whether the result is a hard failure.
func (r Result) IsHard() bool {
	return r.Code == HardFailure
}

// Severity says whether a failing probe blocks dependent steps or is merely
// recorded.
type Severity int

const (
	Blocking Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Blocking:
		return "blocking"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "blocking":
		return Blocking, nil
	case "warning":
		return Warning, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}
