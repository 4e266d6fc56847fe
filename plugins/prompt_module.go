package plugins

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/prompts"
)

// promptModule is a user-defined onboarding step. It renders the plugin's
// prompt template with the hire's details, sends it to the configured LLM,
// and stores the reply as the step's output document.
type promptModule struct {
	*module.Base
	definition ModuleDefinition
	inputs     []artifact.ArtifactRef
	outputs    []artifact.ArtifactRef
	inputIDs   []string
	config     module.Config
}

func newPromptModule(def ModuleDefinition, overrides module.Config) (*promptModule, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	normalized := def.Normalized()
	inputs, inputIDs, err := resolveBindings(normalized.Inputs, false)
	if err != nil {
		return nil, err
	}
	outputs, _, err := resolveBindings(normalized.Outputs, true)
	if err != nil {
		return nil, err
	}
	info := module.Info{
		ID:          normalized.ID,
		Name:        defaultModuleName(normalized),
		Description: normalized.Description,
		Version:     normalized.Version,
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	base := module.NewBase(info)
	base.SetInputs(inputs...)
	base.SetOutputs(outputs...)
	merged := mergeConfigs(normalized.Config, overrides)
	return &promptModule{
		Base:       &base,
		definition: normalized,
		inputs:     inputs,
		outputs:    outputs,
		inputIDs:   inputIDs,
		config:     merged,
	}, nil
}

func (m *promptModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := validatePluginContext(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	complete, err := m.IsComplete(ctx)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if complete {
		return module.Result{Status: module.StatusNoOp, Message: fmt.Sprintf("%s already complete", m.definition.ID)}, nil
	}
	if ctx.LLM == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("plugin %s: llm client is required", m.definition.ID)
	}
	prompt, err := m.renderPrompt(ctx)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	system := m.definition.Prompt.System
	if system == "" {
		system = prompts.ChatSystem
	}
	reply, err := ctx.LLM.Complete(ctx.Ctx, system, prompt)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("plugin %s: completion: %w", m.definition.ID, err)
	}
	body := prompts.StripCodeFence(reply)
	if strings.TrimSpace(body) == "" {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("plugin %s: empty completion", m.definition.ID)
	}
	for _, ref := range m.outputs {
		if err := m.writeOutput(ctx, ref, []byte(body)); err != nil {
			return module.Result{Status: module.StatusFailed}, err
		}
	}
	return module.Result{
		Status:  module.StatusCompleted,
		Message: fmt.Sprintf("%s generated %d artifact(s)", m.definition.ID, len(m.outputs)),
	}, nil
}

func (m *promptModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := validatePluginContext(ctx); err != nil {
		return false, err
	}
	for _, ref := range m.outputs {
		ready, err := m.outputReady(ctx, ref)
		if err != nil {
			return false, err
		}
		if !ready {
			return false, nil
		}
	}
	return true, nil
}

func (m *promptModule) outputReady(ctx *module.ModuleContext, ref artifact.ArtifactRef) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil {
		return false, err
	}
	switch result.State {
	case artifact.StateReady:
		if ref.Kind == artifact.KindMarker || ref.Kind == artifact.KindDirectory {
			return true, nil
		}
		// A version bump in the plugin definition regenerates the document.
		if result.Metadata == nil || result.Metadata.ModuleID != m.definition.ID || result.Metadata.Version != m.definition.Version {
			return false, nil
		}
		return true, nil
	case artifact.StateError:
		if result.Err != nil {
			return false, result.Err
		}
		return false, fmt.Errorf("plugin %s: %s unknown error", m.definition.ID, ref.ID)
	default:
		return false, nil
	}
}

func (m *promptModule) writeOutput(ctx *module.ModuleContext, ref artifact.ArtifactRef, body []byte) error {
	meta := artifact.Metadata{
		ArtifactID: ref.ID,
		ModuleID:   m.definition.ID,
		Version:    m.definition.Version,
		Run:        ctx.Run.ID(),
		Inputs:     append([]string{}, m.inputIDs...),
		Notes:      map[string]string{"model": ctx.LLM.Model()},
	}
	if err := ctx.Artifacts.Write(ref, body, meta); err != nil {
		return fmt.Errorf("plugin %s: write %s: %w", m.definition.ID, ref.ID, err)
	}
	return nil
}

func (m *promptModule) renderPrompt(ctx *module.ModuleContext) (string, error) {
	tmpl, err := template.New("plugin_prompt").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(m.definition.Prompt.Template)
	if err != nil {
		return "", fmt.Errorf("plugin %s: parse template: %w", m.definition.ID, err)
	}
	data := map[string]any{
		"Hire":      ctx.Employee,
		"RunID":     ctx.Run.ID(),
		"RunDir":    ctx.Run.Dir(),
		"Config":    m.config,
		"Variables": m.definition.Prompt.Variables,
		"Inputs":    m.inputs,
		"Outputs":   m.outputs,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("plugin %s: render template: %w", m.definition.ID, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func defaultModuleName(def ModuleDefinition) string {
	if strings.TrimSpace(def.Name) != "" {
		return def.Name
	}
	return def.ID
}

func resolveBindings(bindings []ArtifactBinding, allowCustom bool) ([]artifact.ArtifactRef, []string, error) {
	if len(bindings) == 0 {
		return nil, nil, nil
	}
	resolved := make([]artifact.ArtifactRef, len(bindings))
	ids := make([]string, len(bindings))
	for i, binding := range bindings {
		ref, err := binding.Resolve(allowCustom)
		if err != nil {
			return nil, nil, err
		}
		resolved[i] = ref
		ids[i] = ref.ID
	}
	return resolved, ids, nil
}

func mergeConfigs(base module.Config, override module.Config) module.Config {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(module.Config)
	for k, v := range base {
		if key := strings.TrimSpace(k); key != "" {
			merged[key] = v
		}
	}
	for k, v := range override {
		if key := strings.TrimSpace(k); key != "" {
			merged[key] = v
		}
	}
	return merged
}

func validatePluginContext(ctx *module.ModuleContext) error {
	if ctx == nil {
		return fmt.Errorf("plugin: context is nil")
	}
	if ctx.Config == nil {
		return fmt.Errorf("plugin: config is required")
	}
	if ctx.Run == nil {
		return fmt.Errorf("plugin: run is required")
	}
	if ctx.Employee == nil {
		return fmt.Errorf("plugin: employee is required")
	}
	if ctx.Artifacts == nil {
		return fmt.Errorf("plugin: artifact store is required")
	}
	return nil
}
