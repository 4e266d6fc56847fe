package main

import (
	"fmt"
	"os"

	"github.com/onboardia/onboardia/internal/contracts"
)

func handleValidateWorkflowCommand() bool {
	if len(os.Args) < 2 || os.Args[1] != "validate-workflow" {
		return false
	}
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: onboardia validate-workflow /path/to/workflow.yaml")
		os.Exit(2)
	}
	report, err := contracts.ValidateWorkflowFile(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	if report.IsValid() {
		fmt.Printf("OK: %s (%s)\n", report.Path, report.WorkflowID)
		os.Exit(0)
	}
	fmt.Printf("Invalid: %s (%s)\n", report.Path, report.WorkflowID)
	for _, validationErr := range report.Errors {
		fmt.Printf("- %v\n", validationErr)
	}
	os.Exit(1)
	return true
}
