// Package asana_access invites the hire to the Asana workspace and creates
// their onboarding task in the configured project.
package asana_access

import (
	"encoding/json"
	"fmt"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/runtime"
)

const (
	moduleID      = "asana-access"
	moduleVersion = "1.0.0"
)

// AsanaAccessModule provisions workspace access and the onboarding task.
type AsanaAccessModule struct {
	*module.Base
}

// Register installs the module factory into the provided registry.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(module.Config) (module.Module, error) {
		return New(), nil
	})
}

// New constructs the module with its IO contracts declared.
func New() *AsanaAccessModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Asana Access",
		Description: "Invites the hire to the workspace and creates their onboarding task.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetOutputs(artifact.AsanaInvitedMarker, artifact.AsanaTaskJSON)
	return &AsanaAccessModule{Base: &base}
}

// TaskName builds the onboarding task title for a hire.
func TaskName(name, role string) string {
	return fmt.Sprintf("Onboarding for %s - %s", name, role)
}

// Run performs the invite then the task creation. The invite marker is
// written separately so a task failure does not re-invite on retry.
func (m *AsanaAccessModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if ctx.Tasks == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: asana client is required", moduleID)
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "asana access already provisioned"}, nil
	}

	invited, err := runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.AsanaInvitedMarker)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if !invited {
		if _, err := ctx.Tasks.InviteUser(ctx.Ctx, ctx.Employee.Email); err != nil {
			return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: invite %s: %w", moduleID, ctx.Employee.Email, err)
		}
		meta := artifact.Metadata{
			ArtifactID: artifact.AsanaInvitedMarker.ID,
			ModuleID:   moduleID,
			Version:    moduleVersion,
			Run:        ctx.Run.ID(),
		}
		if err := ctx.Artifacts.Write(artifact.AsanaInvitedMarker, nil, meta); err != nil {
			return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write invite marker: %w", moduleID, err)
		}
		if ctx.Logbook != nil {
			ctx.Logbook.Info("%s: invited %s to workspace", moduleID, ctx.Employee.Email)
		}
	}

	taskName := TaskName(ctx.Employee.Name, ctx.Employee.Role)
	task, err := ctx.Tasks.CreateTask(ctx.Ctx, taskName, ctx.Employee.Email)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create task for %s: %w", moduleID, ctx.Employee.Email, err)
	}

	body, err := json.Marshal(task)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: encode task record: %w", moduleID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: artifact.AsanaTaskJSON.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Run:        ctx.Run.ID(),
		Inputs:     []string{artifact.AsanaInvitedMarker.ID},
	}
	if err := ctx.Artifacts.Write(artifact.AsanaTaskJSON, body, meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write task record: %w", moduleID, err)
	}
	if ctx.Logbook != nil {
		ctx.Logbook.Info("%s: created task %s for %s", moduleID, task.GID, ctx.Employee.Email)
	}
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("asana access provisioned for %s", ctx.Employee.Email)}, nil
}

// IsComplete checks both the invite marker and the task record.
func (m *AsanaAccessModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	invited, err := runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.AsanaInvitedMarker)
	if err != nil || !invited {
		return false, err
	}
	return runtime.EnsureJSON(ctx, moduleID, moduleVersion, artifact.AsanaTaskJSON)
}
