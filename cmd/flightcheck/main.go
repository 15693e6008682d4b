package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/flightcheck/internal/config"
	"github.com/mattjoyce/flightcheck/internal/doctor"
	"github.com/mattjoyce/flightcheck/internal/engine"
	"github.com/mattjoyce/flightcheck/internal/events"
	"github.com/mattjoyce/flightcheck/internal/history"
	"github.com/mattjoyce/flightcheck/internal/lock"
	"github.com/mattjoyce/flightcheck/internal/log"
	"github.com/mattjoyce/flightcheck/internal/report"
	"github.com/mattjoyce/flightcheck/internal/storage"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
	"github.com/mattjoyce/flightcheck/internal/trigger"
	"github.com/mattjoyce/flightcheck/internal/tui/watch"
	"github.com/mattjoyce/flightcheck/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const defaultConfigPath = "flightcheck.yaml"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "run":
		if hasHelpFlag(args) {
			printRunHelp()
			return 0
		}
		return runRun(args)
	case "plan":
		if hasHelpFlag(args) {
			printPlanHelp()
			return 0
		}
		return runPlan(args)
	case "probes":
		if hasHelpFlag(args) {
			printProbesHelp()
			return 0
		}
		return runProbes(args)
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "report":
		if hasHelpFlag(args) {
			printReportHelp()
			return 0
		}
		return runReport(args)
	case "history":
		if hasHelpFlag(args) {
			printHistoryHelp()
			return 0
		}
		return runHistory(args)
	case "config":
		return runConfigNoun(args)
	case "doctor": // alias for config check
		return runConfigCheck(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: flightcheck version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("flightcheck %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`flightcheck - Environment readiness and pipeline orchestration

Usage:
  flightcheck <command> [flags]

Commands:
  run       Plan and execute a pipeline run for a trigger event
  plan      Show the ordered step selection for a trigger without executing
  probes    Evaluate every declared probe and report readiness
  serve     Run the webhook trigger endpoint in the foreground
  report    Re-render the report of a recorded run
  history   List recorded runs
  config    Configuration tooling (check, hash-update)
  doctor    Alias for config check
  version   Show version information
  help      Show this help message

Use 'flightcheck <command> --help' for command-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printRunHelp() {
	fmt.Println("Usage: flightcheck run --trigger KIND [--ref REF] [--platform P] [--environment E] [--config PATH] [--format human|json] [--watch]")
	fmt.Println()
	fmt.Println("Plan and execute a pipeline run. The trigger kind decides which step")
	fmt.Println("categories are eligible; manual dispatch requires an explicit platform")
	fmt.Println("and environment.")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  Every selected step succeeded and no blocking probe finding")
	fmt.Println("  1  Any failure, skip, or blocking finding")
	fmt.Println("  2  Configuration or dispatch error")
}

func printPlanHelp() {
	fmt.Println("Usage: flightcheck plan --trigger KIND [--ref REF] [--platform P] [--environment E] [--config PATH] [--json]")
	fmt.Println("Show the ordered step selection for a trigger event without executing it.")
}

func printProbesHelp() {
	fmt.Println("Usage: flightcheck probes [--config PATH] [--json]")
	fmt.Println("Evaluate every declared probe in declaration order and report readiness.")
}

func printServeHelp() {
	fmt.Println("Usage: flightcheck serve [--config PATH]")
	fmt.Println("Run the HMAC-verified webhook trigger endpoint in the foreground.")
}

func printReportHelp() {
	fmt.Println("Usage: flightcheck report <run-id> [--config PATH] [--format human|json]")
	fmt.Println("Re-render the report of a recorded run. Renderings are deterministic:")
	fmt.Println("replaying a run yields byte-identical output.")
}

func printHistoryHelp() {
	fmt.Println("Usage: flightcheck history [--config PATH] [--limit N] [--json]")
	fmt.Println("List recorded runs, newest first.")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: flightcheck config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, hash-update")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: flightcheck config check [--config PATH] [--json]")
	fmt.Println("Validate the pipeline declaration: graph shape, trigger reachability,")
	fmt.Println("probe references, and environment hygiene.")
}

func printConfigHashUpdateHelp() {
	fmt.Println("Usage: flightcheck config hash-update [--config PATH]")
	fmt.Println("Pin the current configuration by writing its checksum next to it.")
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "hash-update", "lock":
		if hasHelpFlag(actionArgs) {
			printConfigHashUpdateHelp()
			return 0
		}
		return runConfigHashUpdate(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// parseEvent builds the trigger event from the shared run/plan flags.
func parseEvent(kind, ref, platform, environment string) (trigger.Event, error) {
	k, err := trigger.ParseKind(kind)
	if err != nil {
		return trigger.Event{}, err
	}
	p, err := trigger.ParsePlatform(platform)
	if err != nil {
		return trigger.Event{}, err
	}
	e, err := trigger.ParseEnvironment(environment)
	if err != nil {
		return trigger.Event{}, err
	}
	return trigger.Event{Kind: k, Ref: ref, Platform: p, Environment: e}, nil
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	triggerKind := fs.String("trigger", "", "Trigger kind: push, tag, pull_request, manual")
	ref := fs.String("ref", "", "Git ref or tag that fired the trigger")
	platform := fs.String("platform", "", "Target platform: android, ios, both")
	environment := fs.String("environment", "", "Target environment: staging, production")
	format := fs.String("format", "human", "Report format: human or json")
	watchTUI := fs.Bool("watch", false, "Show live step progress in a TUI")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if *triggerKind == "" {
		fmt.Fprintln(os.Stderr, "Error: --trigger is required")
		return 2
	}
	if *format != "human" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", *format)
		return 2
	}

	ev, err := parseEvent(*triggerKind, *ref, *platform, *environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 2
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	instanceLock, err := lock.Acquire(cfg.State.LockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire lock: %v\n", err)
		return 2
	}
	defer instanceLock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		return 2
	}
	defer db.Close()

	hub := events.NewHub(256)
	eng, err := engine.New(cfg, toolchain.NewLocal(), engine.Options{
		Hub:     hub,
		History: history.New(db),
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}

	var rep report.Report
	if *watchTUI {
		rep, err = dispatchWatched(ctx, eng, hub, ev)
	} else {
		rep, err = eng.Dispatch(ctx, ev)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatch failed: %v\n", err)
		return 2
	}

	if *format == "json" {
		data, err := rep.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 2
		}
		os.Stdout.Write(data)
	} else {
		fmt.Print(rep.Human())
	}
	return rep.ExitCode
}

// dispatchWatched runs the engine in a goroutine while the TUI observes the
// hub. The run keeps going even if the user quits the TUI early.
func dispatchWatched(ctx context.Context, eng *engine.Engine, hub *events.Hub, ev trigger.Event) (report.Report, error) {
	p, err := eng.Plan(ev)
	if err != nil {
		return report.Report{}, err
	}
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID
	}

	type dispatched struct {
		rep report.Report
		err error
	}
	done := make(chan dispatched, 1)
	go func() {
		rep, err := eng.Dispatch(ctx, ev)
		done <- dispatched{rep, err}
	}()

	prog := tea.NewProgram(watch.New(hub, ids))
	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
	}

	d := <-done
	return d.rep, d.err
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	triggerKind := fs.String("trigger", "", "Trigger kind: push, tag, pull_request, manual")
	ref := fs.String("ref", "", "Git ref or tag that fired the trigger")
	platform := fs.String("platform", "", "Target platform: android, ios, both")
	environment := fs.String("environment", "", "Target environment: staging, production")
	jsonOut := fs.Bool("json", false, "Output the plan as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *triggerKind == "" {
		fmt.Fprintln(os.Stderr, "Error: --trigger is required")
		return 1
	}

	ev, err := parseEvent(*triggerKind, *ref, *platform, *environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	eng, err := engine.New(cfg, toolchain.NewLocal(), engine.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	p, err := eng.Plan(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plan failed: %v\n", err)
		return 1
	}

	if *jsonOut {
		type planStep struct {
			ID            string   `json:"id"`
			Category      string   `json:"category"`
			Prerequisites []string `json:"prerequisites,omitempty"`
		}
		out := struct {
			Trigger     string     `json:"trigger"`
			Ref         string     `json:"ref,omitempty"`
			Platform    string     `json:"platform"`
			Environment string     `json:"environment"`
			Steps       []planStep `json:"steps"`
		}{
			Trigger:     string(p.Event.Kind),
			Ref:         p.Event.Ref,
			Platform:    string(p.Event.Platform),
			Environment: string(p.Event.Environment),
		}
		for _, s := range p.Steps {
			out.Steps = append(out.Steps, planStep{ID: s.ID, Category: string(s.Category), Prerequisites: s.Prerequisites})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Plan for %s %s (%s/%s): %d step(s)\n",
		p.Event.Kind, p.Event.Ref, p.Event.Platform, p.Event.Environment, len(p.Steps))
	for i, s := range p.Steps {
		fmt.Printf("  %2d. %s [%s]", i+1, s.ID, s.Category)
		if len(s.Prerequisites) > 0 {
			fmt.Printf("  after %s", strings.Join(s.Prerequisites, ", "))
		}
		fmt.Println()
	}
	return 0
}

func runProbes(args []string) int {
	fs := flag.NewFlagSet("probes", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output probe results as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	registry, err := cfg.Registry(toolchain.NewLocal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	type probeRow struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
		Passed   bool   `json:"passed"`
		Message  string `json:"message,omitempty"`
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rows []probeRow
	blocked := false
	for p, res := range registry.RunAll(ctx) {
		rows = append(rows, probeRow{
			Name:     p.Name,
			Severity: p.Severity.String(),
			Passed:   !res.Failed(),
			Message:  res.Message,
		})
		if res.Failed() && p.Severity.String() == "blocking" {
			blocked = true
		}
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, row := range rows {
			mark := "ok  "
			if !row.Passed {
				mark = "FAIL"
			}
			fmt.Printf("  %s [%s] %s", mark, row.Severity, row.Name)
			if row.Message != "" {
				fmt.Printf(": %s", row.Message)
			}
			fmt.Println()
		}
	}

	if blocked {
		return 1
	}
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Serve.Secret == "" {
		fmt.Fprintln(os.Stderr, "Error: serve.secret is required; unsigned triggers are rejected")
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("flightcheck starting", "version", version, "config", *configPath)

	instanceLock, err := lock.Acquire(cfg.State.LockPath)
	if err != nil {
		logger.Error("failed to acquire lock (another instance may be running)", "path", cfg.State.LockPath, "error", err)
		return 1
	}
	defer instanceLock.Release()
	logger.Info("acquired instance lock", "path", instanceLock.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open run history", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("run history opened", "path", cfg.State.Path)

	hub := events.NewHub(256)
	eng, err := engine.New(cfg, toolchain.NewLocal(), engine.Options{
		Hub:     hub,
		History: history.New(db),
		Logger:  log.WithComponent("engine"),
	})
	if err != nil {
		logger.Error("configuration error", "error", err)
		return 1
	}

	srv := webhook.New(cfg.Serve, eng, log.WithComponent("webhook"))
	logger.Info("flightcheck serving (press Ctrl+C to stop)", "listen", cfg.Serve.Listen)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("webhook server failed", "error", err)
		return 1
	}

	logger.Info("flightcheck stopped")
	return 0
}

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	format := fs.String("format", "human", "Report format: human or json")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: flightcheck report <run-id> [--format human|json]")
		return 1
	}
	runID := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		return 1
	}
	defer db.Close()

	r, err := history.New(db).GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			fmt.Fprintf(os.Stderr, "Run not found: %s\n", runID)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
		}
		return 1
	}

	switch *format {
	case "json":
		data, err := report.RenderJSON(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 1
		}
		os.Stdout.Write(data)
	case "human":
		fmt.Print(report.FormatHuman(r))
	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", *format)
		return 1
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	jsonOut := fs.Bool("json", false, "Output run summaries as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run history: %v\n", err)
		return 1
	}
	defer db.Close()

	sums, err := history.New(db).ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(sums, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(sums) == 0 {
		fmt.Println("No recorded runs.")
		return 0
	}
	for _, s := range sums {
		outcome := "PASSED"
		if s.ExitCode != 0 {
			outcome = "FAILED"
		}
		if s.Cancelled {
			outcome = "CANCELLED"
		}
		fmt.Printf("  %s  %-12s %-24s %s/%s  %s\n",
			s.StartedAt.Format(time.RFC3339), s.Trigger, s.Ref, s.Platform, s.Environment, outcome)
		fmt.Printf("    id: %s\n", s.ID)
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output validation result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, catalog).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigHashUpdate(args []string) int {
	fs := flag.NewFlagSet("hash-update", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	// Refuse to pin a config that does not load.
	if _, err := config.LoadNoVerify(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to pin invalid config: %v\n", err)
		return 1
	}

	hash, err := config.WritePin(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write pin: %v\n", err)
		return 1
	}
	fmt.Printf("Pinned %s\n  checksum: %s\n  manifest: %s\n", *configPath, hash, config.PinPath(*configPath))
	return 0
}
