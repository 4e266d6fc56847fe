package plugins

import (
	"fmt"
	"strings"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
)

// ModuleDefinition describes a prompt-driven plugin step loaded from YAML.
//
// The struct mirrors the on-disk schema under .onboardia/plugins/*.yaml and is
// intentionally narrow so startup can validate plugin metadata before wiring
// it into the workflow runtime.
type ModuleDefinition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version" yaml:"version"`
	Prompt      PromptDefinition  `json:"prompt" yaml:"prompt"`
	Inputs      []ArtifactBinding `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     []ArtifactBinding `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Config      module.Config     `json:"config,omitempty" yaml:"config,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def ModuleDefinition) Normalized() ModuleDefinition {
	clone := ModuleDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
		Prompt:      def.Prompt.normalized(),
	}
	if len(def.Inputs) > 0 {
		clone.Inputs = make([]ArtifactBinding, len(def.Inputs))
		for i, binding := range def.Inputs {
			clone.Inputs[i] = binding.normalized()
		}
	}
	if len(def.Outputs) > 0 {
		clone.Outputs = make([]ArtifactBinding, len(def.Outputs))
		for i, binding := range def.Outputs {
			clone.Outputs[i] = binding.normalized()
		}
	}
	if len(def.Config) > 0 {
		clone.Config = make(module.Config, len(def.Config))
		for key, value := range def.Config {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Config[trimmed] = value
		}
	}
	return clone
}

// Validate ensures the plugin definition is well-formed and references known
// artifacts.
func (def ModuleDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if err := normalized.Prompt.Validate(); err != nil {
		return fmt.Errorf("plugin %s: prompt: %w", normalized.ID, err)
	}
	if err := validateBindings("inputs", normalized.Inputs, false); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.ID, err)
	}
	if err := validateBindings("outputs", normalized.Outputs, true); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.ID, err)
	}
	if len(normalized.Outputs) == 0 {
		return fmt.Errorf("plugin %s: at least one output is required", normalized.ID)
	}
	return nil
}

// PromptDefinition declares the LLM conversation a plugin step runs.
type PromptDefinition struct {
	System    string            `json:"system,omitempty" yaml:"system,omitempty"`
	Template  string            `json:"template" yaml:"template"`
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

func (def PromptDefinition) normalized() PromptDefinition {
	clone := PromptDefinition{
		System:   strings.TrimSpace(def.System),
		Template: strings.TrimSpace(def.Template),
	}
	if len(def.Variables) > 0 {
		clone.Variables = make(map[string]string, len(def.Variables))
		for key, value := range def.Variables {
			trimmedKey := strings.TrimSpace(key)
			if trimmedKey == "" {
				continue
			}
			clone.Variables[trimmedKey] = strings.TrimSpace(value)
		}
	}
	return clone
}

// Validate ensures the prompt definition can be rendered and sent.
func (def PromptDefinition) Validate() error {
	normalized := def.normalized()
	if normalized.Template == "" {
		return fmt.Errorf("template is required")
	}
	return nil
}

// ArtifactBinding references an artifact ID and whether it is optional.
// Output bindings may name artifacts outside the built-in catalog; those are
// registered as custom documents under the run's docs directory.
type ArtifactBinding struct {
	Artifact string `json:"artifact" yaml:"artifact"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

func (binding ArtifactBinding) normalized() ArtifactBinding {
	return ArtifactBinding{
		Artifact: strings.TrimSpace(binding.Artifact),
		Name:     strings.TrimSpace(binding.Name),
		Optional: binding.Optional,
	}
}

// Validate ensures the binding references a usable artifact. Inputs must name
// a registered artifact; outputs may introduce new document artifacts.
func (binding ArtifactBinding) Validate(allowCustom bool) error {
	normalized := binding.normalized()
	if normalized.Artifact == "" {
		return fmt.Errorf("artifact id is required")
	}
	if _, ok := artifact.Lookup(normalized.Artifact); !ok && !allowCustom {
		return fmt.Errorf("artifact %s is not registered", normalized.Artifact)
	}
	return nil
}

// Resolve returns the artifact reference declared by the binding. Optional
// flags override the default optionality set by the artifact catalog.
func (binding ArtifactBinding) Resolve(allowCustom bool) (artifact.ArtifactRef, error) {
	normalized := binding.normalized()
	ref, ok := artifact.Lookup(normalized.Artifact)
	if !ok {
		if !allowCustom {
			return artifact.ArtifactRef{}, fmt.Errorf("artifact %s is not registered", normalized.Artifact)
		}
		name := normalized.Name
		if name == "" {
			name = normalized.Artifact
		}
		ref = artifact.CustomDocRef(normalized.Artifact, name, "Plugin-generated document")
	}
	ref.Optional = normalized.Optional
	return ref, nil
}

func validateBindings(label string, bindings []ArtifactBinding, allowCustom bool) error {
	if len(bindings) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(bindings))
	for idx, binding := range bindings {
		if err := binding.Validate(allowCustom); err != nil {
			return fmt.Errorf("%s[%d]: %w", label, idx, err)
		}
		key := binding.normalized().Artifact
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			return fmt.Errorf("%s[%d]: duplicate artifact %s", label, idx, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
