package engine

import (
	"time"

	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/internal/workflow/resolver"
	"github.com/onboardia/onboardia/internal/workflow/scheduler"
)

// EngineStatus is the coarse phase of a hire's checklist run.
type EngineStatus string

const (
	EngineStatusUnknown  EngineStatus = "unknown"
	EngineStatusRunning  EngineStatus = "running"
	EngineStatusBlocked  EngineStatus = "blocked"
	EngineStatusComplete EngineStatus = "complete"
	EngineStatusError    EngineStatus = "error"
)

// State is the persisted snapshot of one hire's checklist run. It is what a
// resumed session loads to pick the checklist back up.
type State struct {
	RunID      string                      `json:"run_id"`
	WorkflowID string                      `json:"workflow_id"`
	Definition workflow.WorkflowDefinition `json:"definition"`
	Status     EngineStatus                `json:"status"`
	// StatusReason explains non-running states to the operator.
	StatusReason string                          `json:"status_reason,omitempty"`
	Runtime      EngineRuntime                   `json:"runtime"`
	Nodes        []ModuleStatus                  `json:"nodes"`
	Runnable     []string                        `json:"runnable"`
	Skipped      map[string]scheduler.SkipReason `json:"skipped,omitempty"`
	Runs         map[string]ModuleRun            `json:"runs,omitempty"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// EngineRuntime holds the scheduling knobs that survive across updates.
type EngineRuntime struct {
	Targets     []string `json:"targets,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	MaxParallel int      `json:"max_parallel,omitempty"`
	Running     []string `json:"running,omitempty"`
}

// RuntimeOverrides selectively mutates EngineRuntime fields. Nil pointers
// leave the existing value in place.
type RuntimeOverrides struct {
	Targets     *[]string
	BatchSize   *int
	MaxParallel *int
	Running     *[]string
}

// ModuleStatus exposes one step's resolver snapshot to state consumers such
// as the TUI.
type ModuleStatus struct {
	ID           string                    `json:"id"`
	ModuleID     string                    `json:"module_id"`
	Name         string                    `json:"name"`
	Description  string                    `json:"description,omitempty"`
	Optional     bool                      `json:"optional,omitempty"`
	State        resolver.NodeState        `json:"state"`
	Dependencies []string                  `json:"dependencies,omitempty"`
	Dependents   []string                  `json:"dependents,omitempty"`
	BlockedBy    []string                  `json:"blocked_by,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Artifacts    map[string]ArtifactStatus `json:"artifacts,omitempty"`
	LastRun      *ModuleRun                `json:"last_run,omitempty"`
}

// ArtifactStatus mirrors the resolver's verdict on one step output.
type ArtifactStatus struct {
	ID     string                `json:"id"`
	Status module.ArtifactStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

// ModuleRun records the last execution result for a step.
type ModuleRun struct {
	Status     module.Status `json:"status"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// schedulerRequest converts EngineRuntime into a scheduler request payload.
func (rt EngineRuntime) schedulerRequest() scheduler.RunnableRequest {
	return scheduler.RunnableRequest{
		Targets:     cloneStrings(rt.Targets),
		BatchSize:   rt.BatchSize,
		MaxParallel: rt.MaxParallel,
		Running:     cloneStrings(rt.Running),
	}
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func (rt EngineRuntime) clone() EngineRuntime {
	return EngineRuntime{
		Targets:     cloneStrings(rt.Targets),
		BatchSize:   rt.BatchSize,
		MaxParallel: rt.MaxParallel,
		Running:     cloneStrings(rt.Running),
	}
}
