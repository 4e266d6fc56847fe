// Package welcome_email generates the hire's HTML welcome email with the
// configured chat model and stores the draft as a run artifact.
package welcome_email

import (
	"fmt"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/runtime"
	"github.com/onboardia/onboardia/internal/prompts"
)

const (
	moduleID      = "welcome-email"
	moduleVersion = "1.0.0"
)

// WelcomeEmailModule drafts the personalized welcome email.
type WelcomeEmailModule struct {
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
func New() *WelcomeEmailModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Generate Welcome Email",
		Description: "Drafts a branded HTML welcome email for the hire via the chat model.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetOutputs(artifact.WelcomeEmailDoc)
	return &WelcomeEmailModule{Base: &base}
}

// Run asks the model for the email body and persists it as a document
// artifact with provenance metadata.
func (m *WelcomeEmailModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if ctx.LLM == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: llm client is required", moduleID)
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "welcome email already drafted"}, nil
	}

	body, err := ctx.LLM.Complete(ctx.Ctx, prompts.WelcomeEmailSystem, prompts.WelcomeEmail(*ctx.Employee))
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: generate email for %s: %w", moduleID, ctx.Employee.Email, err)
	}
	html := prompts.StripCodeFence(body)
	if html == "" {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: model returned an empty email for %s", moduleID, ctx.Employee.Email)
	}

	meta := artifact.Metadata{
		ArtifactID: artifact.WelcomeEmailDoc.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Run:        ctx.Run.ID(),
		Notes: map[string]string{
			"model":   ctx.LLM.Model(),
			"subject": prompts.WelcomeSubject(ctx.Employee.Name),
		},
	}
	if err := ctx.Artifacts.Write(artifact.WelcomeEmailDoc, []byte(html), meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write draft: %w", moduleID, err)
	}
	if ctx.Logbook != nil {
		ctx.Logbook.Info("%s: drafted welcome email for %s", moduleID, ctx.Employee.Email)
	}
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("welcome email drafted for %s", ctx.Employee.Email)}, nil
}

// IsComplete checks that the draft exists with this module's metadata.
func (m *WelcomeEmailModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	return runtime.EnsureDocument(ctx, moduleID, moduleVersion, artifact.WelcomeEmailDoc)
}
