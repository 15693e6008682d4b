package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "flightcheck.yaml")
	configYAML := `
service:
  name: flightcheck-test
state:
  path: ` + filepath.Join(dir, "state", "flightcheck.db") + `
probes:
  - name: repo-readme
    kind: file_exists
    target: ` + configPath + `
    severity: warning
steps:
  - id: checkout
    category: checkout
    probes: [repo-readme]
  - id: build
    category: build
    prerequisites: [checkout]
  - id: release
    category: deploy
    prerequisites: [build]
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("runCLI() code = %d", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("stderr missing unknown command message: %s", stderr)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("runCLI() code = %d", code)
	}
	if !strings.Contains(stdout, "flightcheck <command> [flags]") {
		t.Fatalf("usage missing command terminology: %s", stdout)
	}
}

func TestRunPlanExcludesDeployOnPullRequest(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runPlan([]string{"--config", configPath, "--trigger", "pull_request", "--ref", "refs/pull/1"})
	})
	if code != 0 {
		t.Fatalf("runPlan() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "checkout") || !strings.Contains(stdout, "build") {
		t.Fatalf("plan missing selected steps: %s", stdout)
	}
	if strings.Contains(stdout, "release") {
		t.Fatalf("pull_request plan must not deploy: %s", stdout)
	}
}

func TestRunPlanJSON(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runPlan([]string{"--config", configPath, "--trigger", "tag", "--ref", "v1.2.3", "--json"})
	})
	if code != 0 {
		t.Fatalf("runPlan() code = %d, stderr: %s", code, stderr)
	}

	var out struct {
		Trigger     string `json:"trigger"`
		Environment string `json:"environment"`
		Steps       []struct {
			ID string `json:"id"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("plan JSON did not parse: %v\n%s", err, stdout)
	}
	if out.Trigger != "tag" || out.Environment != "production" {
		t.Fatalf("tag plan should default to production: %+v", out)
	}
	if len(out.Steps) != 3 || out.Steps[2].ID != "release" {
		t.Fatalf("tag plan should end with release: %+v", out.Steps)
	}
}

func TestRunPlanManualWithoutPlatformFails(t *testing.T) {
	configPath := writeTestConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runPlan([]string{"--config", configPath, "--trigger", "manual", "--ref", "refs/heads/main"})
	})
	if code != 1 {
		t.Fatalf("runPlan() code = %d", code)
	}
	if !strings.Contains(stderr, "platform") {
		t.Fatalf("stderr should name the missing argument: %s", stderr)
	}
}

func TestRunProbesReportsDeclaredProbes(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runProbes([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runProbes() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "repo-readme") {
		t.Fatalf("probe listing missing declared probe: %s", stdout)
	}
}

func TestRunConfigCheckValid(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigNoun() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "valid") {
		t.Fatalf("stdout missing validity summary: %s", stdout)
	}
}

func TestRunConfigHashUpdateThenTamperedLoadFails(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"hash-update", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("hash-update code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Pinned") {
		t.Fatalf("stdout missing pin confirmation: %s", stdout)
	}

	f, err := os.OpenFile(configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("\n# tampered\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", configPath})
	})
	if code != 1 {
		t.Fatalf("check on tampered config should fail, code = %d", code)
	}
	if !strings.Contains(stderr, "hash mismatch") {
		t.Fatalf("stderr missing hash mismatch: %s", stderr)
	}
}

func TestRunConfigNounActionHelp(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--help"})
	})
	if code != 0 {
		t.Fatalf("runConfigNoun() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Usage: flightcheck config check") {
		t.Fatalf("stdout missing action help usage: %s", stdout)
	}
}

func TestRunReportUnknownRun(t *testing.T) {
	configPath := writeTestConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runReport([]string{"--config", configPath, "no-such-run"})
	})
	if code != 1 {
		t.Fatalf("runReport() code = %d", code)
	}
	if !strings.Contains(stderr, "Run not found") {
		t.Fatalf("stderr missing not-found message: %s", stderr)
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runHistory([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runHistory() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "No recorded runs.") {
		t.Fatalf("stdout missing empty-history message: %s", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("runVersion() code = %d, stderr: %s", code, stderr)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("version JSON did not parse: %v\n%s", err, stdout)
	}
	if info.Version == "" {
		t.Fatalf("version should never be empty: %+v", info)
	}
}
