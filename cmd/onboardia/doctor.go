package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/onboardia/onboardia/internal/contracts"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/plugins"
)

// runDoctor checks everything the pipeline needs and reports every problem
// at once instead of stopping at the first.
func runDoctor(projectDir string) {
	cfg := mustConfig(projectDir)
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := cfg.ValidateSecrets(); err != nil {
		report("secrets: %v", err)
	}

	auth := googleapi.NewAuthenticator(cfg.GoogleCredentialsPath(), cfg.GoogleTokenPath())
	if _, err := os.Stat(cfg.GoogleCredentialsPath()); err != nil {
		report("google: credentials file missing at %s", cfg.GoogleCredentialsPath())
	} else if !auth.HasToken() {
		report("google: no cached token; run `onboardia auth`")
	}

	directory, err := store.Open(cfg.DatabasePath())
	if err != nil {
		report("database: %v", err)
	} else {
		ctx := context.Background()
		if err := directory.EnsureSchema(ctx); err != nil {
			report("database schema: %v", err)
		} else if count, err := directory.Count(ctx); err != nil {
			report("database query: %v", err)
		} else if count == 0 {
			report("database: employee directory is empty; run `onboardia seed`")
		}
		directory.Close()
	}

	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	if err := plugins.RegisterStepPlugins(reg, cfg); err != nil {
		report("plugins: %v", err)
	}

	workflowPath := filepath.Join(cfg.ProjectDir, "workflows", cfg.DefaultWorkflow()+".yaml")
	if _, err := os.Stat(workflowPath); err == nil {
		if wfReport, err := contracts.ValidateWorkflowFile(workflowPath); err != nil {
			report("workflow: %v", err)
		} else if !wfReport.IsValid() {
			for _, wfErr := range wfReport.Errors {
				report("workflow %s: %v", wfReport.WorkflowID, wfErr)
			}
		}
	}

	if len(problems) == 0 {
		fmt.Println("All checks passed. Onboardia is ready.")
		return
	}
	fmt.Printf("%d problem(s) found:\n", len(problems))
	for _, problem := range problems {
		fmt.Printf("- %s\n", problem)
	}
	os.Exit(1)
}
