package probe

import (
	"context"

	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
)

// CommandVersion declares a probe that checks a tool is on PATH and answers a
// version query.
func CommandVersion(tc toolchain.Toolchain, name string, severity result.Severity, command string, args ...string) Probe {
	return Probe{
		Name:     name,
		Severity: severity,
		Predicate: func(ctx context.Context) result.Result {
			return tc.Probe(ctx, toolchain.ProbeRequest{
				Kind:   toolchain.ProbeCommandVersion,
				Target: command,
				Args:   args,
			})
		},
	}
}

// FileExists declares a probe that checks a file is present.
func FileExists(tc toolchain.Toolchain, name string, severity result.Severity, path string) Probe {
	return Probe{
		Name:     name,
		Severity: severity,
		Predicate: func(ctx context.Context) result.Result {
			return tc.Probe(ctx, toolchain.ProbeRequest{
				Kind:   toolchain.ProbeFileExists,
				Target: path,
			})
		},
	}
}

// SecretPresent declares a probe that checks a named secret resolves to a
// non-empty value. Only presence is checked, never the value.
func SecretPresent(tc toolchain.Toolchain, name string, severity result.Severity, secret string) Probe {
	return Probe{
		Name:     name,
		Severity: severity,
		Predicate: func(ctx context.Context) result.Result {
			return tc.Probe(ctx, toolchain.ProbeRequest{
				Kind:   toolchain.ProbeSecretPresent,
				Target: secret,
			})
		},
	}
}
