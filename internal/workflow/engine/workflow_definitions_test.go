package engine

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
)

func TestNewJoinerWorkflowDeclaresPipelineOrder(t *testing.T) {
	def := loadNewJoinerDefinition(t)
	want := []string{
		"welcome-email",
		"gmail-send",
		"asana-access",
		"mentor-match",
		"intro-call",
	}
	if got := def.ModuleIDs(); !slices.Equal(got, want) {
		t.Fatalf("new-joiner module order mismatch\nwant %v\ngot  %v", want, got)
	}
	assertDependencies := func(id string, expected []string) {
		if deps := def.Dependencies(id); !slices.Equal(deps, expected) {
			t.Fatalf("%s dependencies mismatch\nwant %v\ngot  %v", id, expected, deps)
		}
	}
	assertDependencies("gmail-send", []string{"welcome-email"})
	assertDependencies("intro-call", []string{"gmail-send", "mentor-match"})
	if def.Runtime.MaxParallel != 1 {
		t.Fatalf("expected max_parallel 1, got %d", def.Runtime.MaxParallel)
	}
}

func TestNewJoinerYAMLMatchesBuiltinDefinition(t *testing.T) {
	fromFile := loadNewJoinerDefinition(t)
	builtin, err := workflow.NewJoinerDefinition().Normalized()
	if err != nil {
		t.Fatalf("normalize builtin: %v", err)
	}
	if !slices.Equal(fromFile.ModuleIDs(), builtin.ModuleIDs()) {
		t.Fatalf("module ids diverge\nyaml    %v\nbuiltin %v", fromFile.ModuleIDs(), builtin.ModuleIDs())
	}
	for _, id := range builtin.ModuleIDs() {
		if !slices.Equal(fromFile.Dependencies(id), builtin.Dependencies(id)) {
			t.Fatalf("%s dependencies diverge\nyaml    %v\nbuiltin %v", id, fromFile.Dependencies(id), builtin.Dependencies(id))
		}
	}
}

func TestNewJoinerWorkflowRunsToCompletionWithEngine(t *testing.T) {
	def := loadNewJoinerDefinition(t)
	ctx := newTestModuleContext(t)
	reg := module.NewRegistry()
	stubs := map[string]*stubModule{}
	for _, ref := range def.Modules {
		modID := ref.ModuleID
		if _, exists := stubs[modID]; exists {
			continue
		}
		stub := newStubModule(modID)
		stubs[modID] = stub
		instance := stub
		reg.MustRegister(modID, func(module.Config) (module.Module, error) {
			return instance, nil
		})
	}
	repo := NewRepository(ctx.Run)
	eng, err := New(reg, repo)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := eng.Start(ctx, StartRequest{Definition: def})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(state.Runnable) == 0 {
		t.Fatalf("expected runnable modules at start, got %+v", state.Runnable)
	}
	for _, ref := range def.Modules {
		stubs[ref.ModuleID].setComplete(true)
		state, err = eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
			ID:     ref.InstanceID(),
			Result: module.Result{Status: module.StatusCompleted},
		}}})
		if err != nil {
			t.Fatalf("update %s: %v", ref.InstanceID(), err)
		}
	}
	if state.Status != EngineStatusComplete {
		t.Fatalf("expected engine complete, got %s", state.Status)
	}
}

func loadNewJoinerDefinition(t *testing.T) workflow.WorkflowDefinition {
	t.Helper()
	path := filepath.Join("..", "..", "..", "workflows", "new-joiner.yaml")
	def, err := workflow.LoadDefinitionFile(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	return def
}
