package plugins

import (
	"strings"
	"testing"
)

func TestModuleDefinitionValidate(t *testing.T) {
	def := ModuleDefinition{
		ID:      "team-intro-doc",
		Name:    "Team Intro Doc",
		Version: "1.0.0",
		Prompt: PromptDefinition{
			Template: "Write a one-page intro to the data platform team for {{.Hire.Name}}",
		},
		Inputs:  []ArtifactBinding{{Artifact: "mentor"}},
		Outputs: []ArtifactBinding{{Artifact: "team-intro"}},
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("expected definition to validate, got %v", err)
	}
}

func TestModuleDefinitionValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		def  ModuleDefinition
		msg  string
	}{
		{
			name: "missing id",
			def: ModuleDefinition{
				Version: "1.0.0",
				Prompt:  PromptDefinition{Template: "write"},
				Outputs: []ArtifactBinding{{Artifact: "team-intro"}},
			},
			msg: "id is required",
		},
		{
			name: "unknown input artifact",
			def: ModuleDefinition{
				ID:      "team-intro-doc",
				Version: "1.0.0",
				Prompt:  PromptDefinition{Template: "write"},
				Inputs:  []ArtifactBinding{{Artifact: "does-not-exist"}},
				Outputs: []ArtifactBinding{{Artifact: "team-intro"}},
			},
			msg: "does-not-exist",
		},
		{
			name: "missing template",
			def: ModuleDefinition{
				ID:      "team-intro-doc",
				Version: "1.0.0",
				Outputs: []ArtifactBinding{{Artifact: "team-intro"}},
			},
			msg: "template is required",
		},
		{
			name: "duplicate outputs",
			def: ModuleDefinition{
				ID:      "team-intro-doc",
				Version: "1.0.0",
				Prompt:  PromptDefinition{Template: "write"},
				Outputs: []ArtifactBinding{{Artifact: "team-intro"}, {Artifact: "team-intro"}},
			},
			msg: "duplicate",
		},
		{
			name: "no outputs",
			def: ModuleDefinition{
				ID:      "team-intro-doc",
				Version: "1.0.0",
				Prompt:  PromptDefinition{Template: "write"},
			},
			msg: "at least one output",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.def.Validate(); err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected error containing %q, got %v", tc.msg, err)
			}
		})
	}
}

func TestArtifactBindingResolveOptionalOverride(t *testing.T) {
	binding := ArtifactBinding{Artifact: "welcome-email-doc", Optional: true}
	ref, err := binding.Resolve(false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ref.Optional {
		t.Fatalf("expected optional override, got %+v", ref)
	}
}

func TestArtifactBindingResolveCustomOutput(t *testing.T) {
	binding := ArtifactBinding{Artifact: "equipment-checklist", Name: "Equipment Checklist"}
	ref, err := binding.Resolve(true)
	if err != nil {
		t.Fatalf("resolve custom: %v", err)
	}
	if ref.ID != "equipment-checklist" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if _, err := (ArtifactBinding{Artifact: "never-registered-input"}).Resolve(false); err == nil {
		t.Fatalf("unregistered artifacts must not resolve as inputs")
	}
}
