package module

import (
	"fmt"

	"github.com/onboardia/onboardia/internal/artifact"
)

// Info identifies an onboarding step to the checklist engine. The ID is what
// dependency edges and runtime overrides refer to, so it has to be stable
// across checklist revisions.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("module: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("module: name is required for %s", i.ID)
	}
	if i.Version == "" {
		return fmt.Errorf("module: version is required for %s", i.ID)
	}
	return nil
}

// Result captures the outcome of a single step run for one hire.
type Result struct {
	Status  Status
	Message string
}

// Status enumerates step run outcomes.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusNoOp       Status = "no-op"
	StatusNeedsInput Status = "needs-input"
	StatusFailed     Status = "failed"
)

// Module is one onboarding step: drafting the welcome email, booking the
// orientation call, matching a mentor. Inputs and Outputs declare the
// artifacts the step reads and writes so the resolver can order steps
// without the steps knowing about each other. IsComplete lets a resumed
// run skip work already done for the hire.
type Module interface {
	Info() Info
	Inputs() []artifact.ArtifactRef
	Outputs() []artifact.ArtifactRef
	IsComplete(ctx *ModuleContext) (bool, error)
	Run(ctx *ModuleContext) (Result, error)
}
