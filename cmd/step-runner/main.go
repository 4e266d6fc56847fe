// cmd/step-runner runs a single onboarding step for one hire from the command
// line. It exists for debugging pipeline steps without driving the whole TUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onboardia/onboardia/internal/asana"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/logbook"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/plugins"
)

func main() {
	moduleID := flag.String("module", "", "step identifier to execute (e.g. welcome-email)")
	employee := flag.String("employee", "", "email address of the hire to run the step for")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	pollInterval := flag.Duration("poll", 3*time.Second, "poll interval while waiting for completion")
	configFile := flag.String("config-file", "", "path to YAML/JSON file with step config overrides")
	sets := keyValueFlag{}
	flag.Var(&sets, "set", "step config override (key=value, repeatable)")
	flag.Parse()

	if strings.TrimSpace(*moduleID) == "" {
		die("--module is required")
	}
	if strings.TrimSpace(*employee) == "" {
		die("--employee is required")
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitOnboardiaDir(absoluteProject); err != nil {
		die("init .onboardia: %v", err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}

	directory, err := store.Open(cfg.DatabasePath())
	if err != nil {
		die("open employee directory: %v", err)
	}
	defer directory.Close()
	stdCtx := context.Background()
	if err := directory.EnsureSchema(stdCtx); err != nil {
		die("prepare schema: %v", err)
	}
	hire, err := directory.ByEmail(stdCtx, strings.TrimSpace(*employee))
	if err != nil {
		die("look up %s: %v", *employee, err)
	}

	run := workflow.NewRun(cfg.RunsDir(), workflow.RunIDForEmail(hire.Email))
	if err := run.Initialize(); err != nil {
		die("prepare run directory: %v", err)
	}
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "onboardia.log"))
	if err != nil {
		die("open logbook: %v", err)
	}
	mentors, err := roster.Load(filepath.Join(cfg.StateDir(), "mentors.json"), cfg.Project.Onboarding.MentorCapacity)
	if err != nil {
		die("load mentor roster: %v", err)
	}

	ctx := module.NewContext(cfg, run, &hire, lb).
		WithClients(buildClients(cfg)).
		WithDirectory(directory, mentors).
		WithMode("step-runner")

	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	if err := plugins.RegisterStepPlugins(reg, cfg); err != nil {
		die("load plugins: %v", err)
	}
	cfgOverrides, err := buildModuleConfig(*configFile, sets)
	if err != nil {
		die("load config overrides: %v", err)
	}
	mod, err := reg.Resolve(*moduleID, cfgOverrides)
	if err != nil {
		die("resolve step: %v", err)
	}
	info := mod.Info()
	label := moduleLabel(info, *moduleID)
	result, err := mod.Run(ctx)
	if err != nil {
		die("run step: %v", err)
	}
	fmt.Printf("Run status: %s\n", result.Status)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	if result.Status == module.StatusCompleted || result.Status == module.StatusNoOp {
		fmt.Printf("%s completed without polling.\n", label)
		return
	}
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()
	for {
		complete, err := mod.IsComplete(ctx)
		if err != nil {
			die("check completion: %v", err)
		}
		if complete {
			fmt.Printf("%s completed successfully.\n", label)
			return
		}
		fmt.Printf("Waiting for %s outputs...\n", label)
		<-ticker.C
	}
}

func buildClients(cfg *config.Config) (llm.Client, module.EmailSender, module.EventScheduler, module.TaskService) {
	var (
		chat  llm.Client
		mail  module.EmailSender
		cal   module.EventScheduler
		tasks module.TaskService
	)
	apiKey := cfg.Secrets.GeminiAPIKey
	if strings.EqualFold(cfg.Project.LLM.Provider, "anthropic") {
		apiKey = cfg.Secrets.AnthropicAPIKey
	}
	if apiKey != "" {
		client, err := llm.New(cfg.Project.LLM.Provider, cfg.Project.Model(), apiKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "llm client unavailable: %v\n", err)
		} else {
			chat = client
		}
	}
	auth := googleapi.NewAuthenticator(cfg.GoogleCredentialsPath(), cfg.GoogleTokenPath())
	if auth.HasToken() {
		if httpClient, err := auth.Client(context.Background()); err == nil {
			mail = googleapi.NewGmail(httpClient)
			cal = googleapi.NewCalendar(httpClient)
		}
	}
	if cfg.Secrets.AsanaPAT != "" {
		tasks = asana.New(asana.Config{
			PAT:          cfg.Secrets.AsanaPAT,
			WorkspaceGID: cfg.Secrets.AsanaWorkspaceGID,
			ProjectGID:   cfg.Secrets.AsanaProjectGID,
		})
	}
	return chat, mail, cal, tasks
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

func buildModuleConfig(configFile string, overrides keyValueFlag) (module.Config, error) {
	var cfg module.Config
	if path := strings.TrimSpace(configFile); path != "" {
		fileCfg, err := readModuleConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if len(overrides) > 0 {
		if cfg == nil {
			cfg = module.Config{}
		}
		for key, value := range overrides {
			cfg[key] = value
		}
	}
	if len(cfg) == 0 {
		return nil, nil
	}
	return cfg, nil
}

func moduleLabel(info module.Info, fallback string) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if id := strings.TrimSpace(info.ID); id != "" {
		return id
	}
	return strings.TrimSpace(fallback)
}

func readModuleConfigFile(path string) (module.Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	cfg := make(module.Config, len(raw))
	for key, value := range raw {
		cfg[key] = value
	}
	return cfg, nil
}
