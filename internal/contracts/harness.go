package contracts

import (
	"fmt"

	"github.com/onboardia/onboardia/internal/workflow"
)

// Report captures validation results for a workflow file.
type Report struct {
	Path       string
	WorkflowID string
	Errors     []error
}

// ValidateWorkflowFile reads and validates a workflow YAML file.
func ValidateWorkflowFile(path string) (*Report, error) {
	def, err := workflow.LoadDefinitionFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow file: %w", err)
	}
	report := &Report{
		Path:       path,
		WorkflowID: def.ID,
		Errors:     ValidateWorkflow(&def),
	}
	return report, nil
}

// IsValid reports whether the validation passed.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}
