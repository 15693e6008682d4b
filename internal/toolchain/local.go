package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/flightcheck/internal/log"
	"github.com/mattjoyce/flightcheck/internal/result"
)

const (
	// maxStderrBytes caps the amount of stderr captured from an invocation.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second

	// probeTimeout bounds version-query subprocesses. Probes are cheap reads;
	// anything slower than this is itself a finding.
	probeTimeout = 10 * time.Second
)

// Local runs invocations as subprocesses on the host and resolves secrets
// from the environment.
type Local struct {
	logger *slog.Logger

	// lookupEnv is swappable for tests.
	lookupEnv func(string) (string, bool)
}

// NewLocal creates a host-backed toolchain.
func NewLocal() *Local {
	return &Local{
		logger:    log.WithComponent("toolchain"),
		lookupEnv: os.LookupEnv,
	}
}

// Probe performs a read-only inspection of the host environment.
func (l *Local) Probe(ctx context.Context, req ProbeRequest) result.Result {
	switch req.Kind {
	case ProbeFileExists:
		if _, err := os.Stat(req.Target); err != nil {
			if os.IsNotExist(err) {
				return result.Hard(fmt.Sprintf("required file %s not found", req.Target)).WithKind("missing_file")
			}
			return result.Hard(fmt.Sprintf("stat %s: %v", req.Target, err)).WithKind("missing_file")
		}
		return result.OK()

	case ProbeCommandVersion:
		path, err := exec.LookPath(req.Target)
		if err != nil {
			return result.Hard(fmt.Sprintf("%s not found on PATH", req.Target)).WithKind("missing_tool")
		}
		args := req.Args
		if len(args) == 0 {
			args = []string{"--version"}
		}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		out, err := exec.CommandContext(pctx, path, args...).Output()
		if err != nil {
			return result.Hard(fmt.Sprintf("%s version query failed: %v", req.Target, err)).WithKind("missing_tool")
		}
		version := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		l.logger.Debug("version probe", "command", req.Target, "version", version)
		return result.OK()

	case ProbeSecretPresent:
		if !l.SecretPresent(req.Target) {
			return result.Hard(fmt.Sprintf("secret %s is not configured", req.Target)).WithKind("missing_secret")
		}
		return result.OK()

	default:
		return result.Hard(fmt.Sprintf("unknown probe kind %q", req.Kind)).WithKind("config")
	}
}

// SecretPresent checks the environment for a non-empty value. The value
// itself never leaves this method.
func (l *Local) SecretPresent(name string) bool {
	v, ok := l.lookupEnv(name)
	return ok && v != ""
}

// Invoke spawns the command, enforces the timeout with SIGTERM then SIGKILL
// after a grace period, and classifies the outcome.
func (l *Local) Invoke(ctx context.Context, inv Invocation) result.Result {
	if inv.Command == "" {
		return result.Hard("invocation has no command").WithKind("config")
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	cmd := exec.Command(inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	// Own process group, so termination reaches grandchildren too. Without it
	// an orphaned child keeps the output pipes open and Wait never returns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("invoking", "command", inv.Command, "args", inv.Args, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return result.Hard(fmt.Sprintf("%s not found on PATH", inv.Command)).WithKind("missing_tool")
		}
		return result.Hard(fmt.Sprintf("start %s: %v", inv.Command, err)).WithKind("command_failed")
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		l.terminate(cmd, waitErr)
		return result.TransientHard(fmt.Sprintf("%s timed out after %v", inv.Command, timeout)).WithKind("timeout")

	case <-ctx.Done():
		l.terminate(cmd, waitErr)
		return result.Hard(fmt.Sprintf("%s aborted: %v", inv.Command, ctx.Err())).WithKind("cancelled")

	case err := <-waitErr:
		if err == nil {
			return result.OK()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			msg := fmt.Sprintf("%s exited %d: %s", inv.Command, code, truncateStderr(stderr.String()))
			if slices.Contains(inv.SoftExitCodes, code) {
				return result.Soft(msg).WithKind("command_failed")
			}
			return result.Hard(msg).WithKind("command_failed")
		}
		return result.Hard(fmt.Sprintf("%s: %v", inv.Command, err)).WithKind("command_failed")
	}
}

// terminate SIGTERMs the invocation's process group, waits the grace period,
// then SIGKILLs the group.
func (l *Local) terminate(cmd *exec.Cmd, waitErr chan error) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	l.logger.Warn("terminating invocation", "command", cmd.Path, "pgid", pgid)
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		l.logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		l.logger.Warn("invocation ignored SIGTERM, sending SIGKILL", "command", cmd.Path)
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			l.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

// truncateStderr flattens and caps stderr for inclusion in a result message.
func truncateStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrBytes {
		s = s[:maxStderrBytes] + "... [truncated]"
	}
	return s
}
