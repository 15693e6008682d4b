// Package toolchain abstracts the external build/install/deploy tools the
// engine drives. The engine only issues calls and interprets outcomes; it
// never runs build logic itself.
package toolchain

import (
	"context"
	"time"

	"github.com/mattjoyce/flightcheck/internal/result"
)

//go:generate mockgen -destination=mocks/mock_toolchain.go -package=mocks github.com/mattjoyce/flightcheck/internal/toolchain Toolchain

// ProbeKind selects a read-only environment inspection.
type ProbeKind string

const (
	ProbeCommandVersion ProbeKind = "command_version"
	ProbeFileExists     ProbeKind = "file_exists"
	ProbeSecretPresent  ProbeKind = "secret_present"
)

// ProbeRequest describes a single read-only check. Target is the command
// name, file path, or secret name depending on Kind.
type ProbeRequest struct {
	Kind   ProbeKind
	Target string
	Args   []string
}

// Invocation describes an external command a step wants executed.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration

	// SoftExitCodes lists exit codes treated as a soft failure rather than a
	// hard one (e.g. a linter that exits 2 on style findings).
	SoftExitCodes []int
}

// Toolchain is the opaque capability steps and probes are executed through.
type Toolchain interface {
	// Probe performs a read-only inspection. It must not mutate anything;
	// probes are re-run freely for diagnostics.
	Probe(ctx context.Context, req ProbeRequest) result.Result

	// Invoke runs an external command with deadline enforcement. A timeout
	// yields a transient hard failure.
	Invoke(ctx context.Context, inv Invocation) result.Result

	// SecretPresent reports whether a named secret is resolvable. The value
	// is never returned.
	SecretPresent(name string) bool
}
