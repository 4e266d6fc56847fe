// cmd/onboardia/main.go
//
// Entry point for the Onboardia CLI. Run `onboardia` with no arguments to get
// the interactive TUI; the subcommands cover headless and setup flows:
//
//	onboardia auth               complete the Google OAuth flow
//	onboardia seed               load the demo employee directory
//	onboardia onboard            run the pipeline for every new joiner, no TUI
//	onboardia doctor             check credentials, database and workflow files
//	onboardia webhooks           run the Asana webhook receiver in the foreground
//	onboardia validate-workflow  check a workflow YAML against the step contracts
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onboardia/onboardia/internal/asana"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/coordinator"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/logbook"
	"github.com/onboardia/onboardia/internal/logging"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/tui"
	"github.com/onboardia/onboardia/internal/webhooks"
	"github.com/onboardia/onboardia/plugins"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}

	if handleValidateWorkflowCommand() {
		return
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "auth":
			runAuth(cwd)
			return
		case "seed":
			runSeed(cwd)
			return
		case "onboard":
			runOnboard(cwd)
			return
		case "webhooks":
			runWebhooks(cwd)
			return
		case "doctor":
			runDoctor(cwd)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
			fmt.Fprintln(os.Stderr, "Usage: onboardia [auth|seed|onboard|doctor|webhooks|validate-workflow]")
			os.Exit(2)
		}
	}

	runTUI(cwd)
}

func runTUI(projectDir string) {
	if err := config.InitOnboardiaDir(projectDir); err != nil {
		die("initialize .onboardia directory: %v", err)
	}

	// The webhook receiver is opt-in; when enabled it runs alongside the TUI
	// so task updates stream into the log panel.
	if shutdown := startWebhookReceiver(projectDir); shutdown != nil {
		defer shutdown()
	}

	app, err := tui.NewApp(projectDir)
	if err != nil {
		die("start onboardia: %v", err)
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		die("run TUI: %v", err)
	}
}

// startWebhookReceiver starts the Asana webhook server when the project config
// enables it. The returned func shuts the server down; nil means it never started.
func startWebhookReceiver(projectDir string) func() {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil
	}
	settings := webhooks.SettingsFromConfig(cfg)
	if !settings.Enabled {
		return nil
	}
	logger, err := logging.New(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "webhook receiver disabled: %v\n", err)
		return nil
	}
	srv := webhooks.NewServer(settings,
		webhooks.WithProcessor(newEventProcessor(cfg, logger)),
		webhooks.WithLogger(logger),
		webhooks.WithSecretStore(webhooks.NewFileSecretStore(filepath.Join(cfg.StateDir(), "webhook-secret"))))
	if err := srv.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "webhook receiver failed to start: %v\n", err)
		logger.Close()
		return nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		logger.Close()
	}
}

// runWebhooks runs the receiver in the foreground until interrupted, no TUI.
// Useful behind a tunnel when registering the webhook with Asana.
func runWebhooks(projectDir string) {
	cfg := mustConfig(projectDir)
	settings := webhooks.SettingsFromConfig(cfg)
	settings.Enabled = true
	logger, err := logging.New(projectDir)
	if err != nil {
		die("open log: %v", err)
	}
	defer logger.Close()
	srv := webhooks.NewServer(settings,
		webhooks.WithProcessor(newEventProcessor(cfg, logger)),
		webhooks.WithLogger(logger),
		webhooks.WithSecretStore(webhooks.NewFileSecretStore(filepath.Join(cfg.StateDir(), "webhook-secret"))))
	if err := srv.Start(context.Background()); err != nil {
		die("start webhook receiver: %v", err)
	}
	fmt.Printf("Webhook receiver listening on %s\n", srv.BaseURL())
	fmt.Println("Point the Asana webhook target at /webhooks/asana. Ctrl-C to stop.")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// newEventProcessor records every verified Asana delivery in the logbook
// (so the TUI log panel shows it) and fans it out to any step subscribed to
// the affected task.
func newEventProcessor(cfg *config.Config, logger *logging.Logger) webhooks.EventProcessor {
	router := webhooks.NewRouter(webhooks.RouterWithLogger(logger))
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "onboardia.log"))
	if err != nil {
		lb = nil
	}
	return webhooks.EventProcessorFunc(func(event webhooks.Event) error {
		lb.Info("asana webhook: %s %s %s", event.Action, event.Resource.ResourceType, event.Resource.GID)
		return router.HandleEvent(event)
	})
}

// runAuth walks through the Google OAuth consent flow and stores the token
// so the gmail-send and intro-call steps can act on the user's behalf.
func runAuth(projectDir string) {
	cfg := mustConfig(projectDir)
	auth := googleapi.NewAuthenticator(cfg.GoogleCredentialsPath(), cfg.GoogleTokenPath())
	url, err := auth.AuthURL()
	if err != nil {
		die("build consent URL: %v", err)
	}
	fmt.Println("Open this URL in your browser and authorize Onboardia:")
	fmt.Println()
	fmt.Printf("  %s\n", url)
	fmt.Println()
	fmt.Print("Paste the authorization code here: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		die("read authorization code: %v", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		die("no authorization code provided")
	}
	if err := auth.Exchange(context.Background(), code); err != nil {
		die("exchange authorization code: %v", err)
	}
	fmt.Printf("Token saved to %s\n", cfg.GoogleTokenPath())
}

// runSeed fills the employee directory with demo data so the workflow has
// joiners and mentors to work with.
func runSeed(projectDir string) {
	cfg := mustConfig(projectDir)
	directory, err := store.Open(cfg.DatabasePath())
	if err != nil {
		die("open employee directory: %v", err)
	}
	defer directory.Close()
	ctx := context.Background()
	if err := directory.EnsureSchema(ctx); err != nil {
		die("prepare schema: %v", err)
	}
	if err := directory.Seed(ctx, time.Now()); err != nil {
		die("seed directory: %v", err)
	}
	count, err := directory.Count(ctx)
	if err != nil {
		die("count employees: %v", err)
	}
	fmt.Printf("Employee directory ready at %s (%d employees)\n", cfg.DatabasePath(), count)
}

// runOnboard performs one headless onboarding sweep over every new joiner.
func runOnboard(projectDir string) {
	cfg := mustConfig(projectDir)
	if err := cfg.ValidateSecrets(); err != nil {
		die("missing configuration: %v", err)
	}
	directory, err := store.Open(cfg.DatabasePath())
	if err != nil {
		die("open employee directory: %v", err)
	}
	defer directory.Close()
	ctx := context.Background()
	if err := directory.EnsureSchema(ctx); err != nil {
		die("prepare schema: %v", err)
	}

	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	if err := plugins.RegisterStepPlugins(reg, cfg); err != nil {
		die("load plugins: %v", err)
	}

	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "onboardia.log"))
	if err != nil {
		die("open logbook: %v", err)
	}
	mentors, err := roster.Load(filepath.Join(cfg.StateDir(), "mentors.json"), cfg.Project.Onboarding.MentorCapacity)
	if err != nil {
		die("load mentor roster: %v", err)
	}

	coord, err := coordinator.New(cfg, reg, directory, buildClients(cfg),
		coordinator.WithLogbook(lb),
		coordinator.WithRoster(mentors))
	if err != nil {
		die("build coordinator: %v", err)
	}
	summary, err := coord.OnboardNewJoiners(ctx)
	if err != nil {
		die("onboarding sweep: %v", err)
	}
	if summary.Message != "" {
		fmt.Println(summary.Message)
	}
	fmt.Printf("Processed %d hire(s), %d onboarded cleanly.\n", summary.Processed, summary.Successes)
	for _, failure := range summary.Failures {
		fmt.Printf("  %s: %s failed: %s\n", failure.Employee, failure.Module, failure.Error)
	}
	if summary.Failed() {
		os.Exit(1)
	}
}

// buildClients wires whichever external services have credentials configured.
// Missing credentials degrade the matching steps rather than aborting the sweep.
func buildClients(cfg *config.Config) coordinator.Clients {
	var clients coordinator.Clients

	apiKey := cfg.Secrets.GeminiAPIKey
	if strings.EqualFold(cfg.Project.LLM.Provider, "anthropic") {
		apiKey = cfg.Secrets.AnthropicAPIKey
	}
	if apiKey != "" {
		chat, err := llm.New(cfg.Project.LLM.Provider, cfg.Project.Model(), apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "llm client unavailable: %v\n", err)
		} else {
			clients.LLM = chat
		}
	}

	auth := googleapi.NewAuthenticator(cfg.GoogleCredentialsPath(), cfg.GoogleTokenPath())
	if auth.HasToken() {
		if httpClient, err := auth.Client(context.Background()); err == nil {
			clients.Mail = googleapi.NewGmail(httpClient)
			clients.Calendar = googleapi.NewCalendar(httpClient)
		} else {
			fmt.Fprintf(os.Stderr, "google client unavailable: %v\n", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "no google token; run `onboardia auth` first")
	}

	if cfg.Secrets.AsanaPAT != "" {
		clients.Tasks = asana.New(asana.Config{
			PAT:          cfg.Secrets.AsanaPAT,
			WorkspaceGID: cfg.Secrets.AsanaWorkspaceGID,
			ProjectGID:   cfg.Secrets.AsanaProjectGID,
		})
	}
	return clients
}

func mustConfig(projectDir string) *config.Config {
	if err := config.InitOnboardiaDir(projectDir); err != nil {
		die("initialize .onboardia directory: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		die("load config: %v", err)
	}
	return cfg
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
