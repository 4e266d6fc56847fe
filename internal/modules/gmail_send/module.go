// Package gmail_send delivers the drafted welcome email through the Gmail
// API and records a sent marker so retried runs never double-send.
package gmail_send

import (
	"fmt"
	"strings"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/runtime"
	"github.com/onboardia/onboardia/internal/prompts"
)

const (
	moduleID      = "gmail-send"
	moduleVersion = "1.0.0"
)

// GmailSendModule sends the welcome email draft to the hire.
type GmailSendModule struct {
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
func New() *GmailSendModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Send Welcome Email",
		Description: "Sends the drafted HTML welcome email from the onboarding account.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetInputs(artifact.WelcomeEmailDoc)
	base.SetOutputs(artifact.EmailSentMarker)
	return &GmailSendModule{Base: &base}
}

// Run reads the draft, sends it, and writes the sent marker.
func (m *GmailSendModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if ctx.Mail == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: mail client is required", moduleID)
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "welcome email already sent"}, nil
	}

	draftReady, err := runtime.EnsureDocument(ctx, "welcome-email", moduleVersion, artifact.WelcomeEmailDoc)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if !draftReady {
		return module.Result{Status: module.StatusNeedsInput, Message: "welcome email draft is not ready"}, nil
	}

	body, _, err := ctx.Artifacts.ReadDocument(artifact.WelcomeEmailDoc)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: read draft: %w", moduleID, err)
	}

	subject, body := splitSubject(body)
	if subject == "" {
		subject = prompts.WelcomeSubject(ctx.Employee.Name)
	}
	sent, err := ctx.Mail.SendHTML(ctx.Ctx, ctx.Employee.Email, subject, string(body))
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: send to %s: %w", moduleID, ctx.Employee.Email, err)
	}

	meta := artifact.Metadata{
		ArtifactID: artifact.EmailSentMarker.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Run:        ctx.Run.ID(),
	}
	if err := ctx.Artifacts.Write(artifact.EmailSentMarker, nil, meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write marker: %w", moduleID, err)
	}
	if ctx.Logbook != nil {
		ctx.Logbook.Info("%s: sent welcome email to %s (message %s)", moduleID, ctx.Employee.Email, sent.ID)
	}
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("welcome email sent to %s", ctx.Employee.Email)}, nil
}

// splitSubject pulls a "Subject:" first line out of the draft when the model
// included one, returning the subject and the remaining body. Drafts without
// that line come back unchanged with an empty subject.
func splitSubject(draft []byte) (string, []byte) {
	first, rest, _ := strings.Cut(string(draft), "\n")
	trimmed := strings.TrimSpace(first)
	const prefix = "subject:"
	if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return "", draft
	}
	subject := strings.TrimSpace(trimmed[len(prefix):])
	if subject == "" {
		return "", draft
	}
	return subject, []byte(strings.TrimLeft(rest, "\r\n"))
}

// IsComplete reports whether the sent marker exists.
func (m *GmailSendModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	return runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.EmailSentMarker)
}
