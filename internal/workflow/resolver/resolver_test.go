package resolver

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
)

func TestResolverRefreshSetsStates(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft":    newStubModule("draft", true, nil),
		"send":     newStubModule("send", false, nil),
		"schedule": newStubModule("schedule", false, nil),
	}
	resolver := buildResolver(t, stubs)
	ctx := newTestModuleContext(t)

	if err := resolver.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	draft := mustNode(t, resolver, "draft-email")
	send := mustNode(t, resolver, "send-email")
	schedule := mustNode(t, resolver, "schedule-call")

	if draft.State != NodeStateComplete {
		t.Fatalf("expected draft complete, got %s", draft.State)
	}
	if send.State != NodeStateReady {
		t.Fatalf("expected send ready, got %s", send.State)
	}
	if schedule.State != NodeStateBlocked {
		t.Fatalf("expected schedule blocked, got %s", schedule.State)
	}
	if len(schedule.BlockedBy) != 1 || schedule.BlockedBy[0] != "send-email" {
		t.Fatalf("schedule blocked by %+v", schedule.BlockedBy)
	}

	ready := resolver.Ready()
	if len(ready) != 1 || ready[0].ID != "send-email" {
		t.Fatalf("unexpected ready set: %#v", ready)
	}
}

func TestResolverQueueTargetsOrdersDependencies(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft":    newStubModule("draft", false, nil),
		"send":     newStubModule("send", false, nil),
		"schedule": newStubModule("schedule", false, nil),
	}
	resolver := buildResolver(t, stubs)
	ctx := newTestModuleContext(t)

	if err := resolver.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	queue, err := resolver.Queue("schedule-call")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("expected 3 queued modules, got %d", len(queue))
	}
	if queue[0].ID != "draft-email" || queue[1].ID != "send-email" || queue[2].ID != "schedule-call" {
		t.Fatalf("unexpected order: %s -> %s -> %s", queue[0].ID, queue[1].ID, queue[2].ID)
	}
}

func TestResolverRefreshPropagatesErrors(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft":    newStubModule("draft", true, nil),
		"send":     newStubModule("send", false, errors.New("boom")),
		"schedule": newStubModule("schedule", false, nil),
	}
	resolver := buildResolver(t, stubs)
	ctx := newTestModuleContext(t)

	if err := resolver.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	send := mustNode(t, resolver, "send-email")
	if send.State != NodeStateError {
		t.Fatalf("expected send error state, got %s", send.State)
	}
	if send.Err == nil || send.Err.Error() != "boom" {
		t.Fatalf("unexpected send error: %v", send.Err)
	}
	schedule := mustNode(t, resolver, "schedule-call")
	if schedule.State != NodeStateBlocked {
		t.Fatalf("expected schedule blocked by error, got %s", schedule.State)
	}
	if len(schedule.BlockedBy) != 1 || schedule.BlockedBy[0] != "send-email" {
		t.Fatalf("unexpected schedule blockers: %+v", schedule.BlockedBy)
	}
}

func buildResolver(t *testing.T, stubs map[string]*stubModule) *Resolver {
	t.Helper()
	reg := module.NewRegistry()
	for id, stub := range stubs {
		id := id
		stub := stub
		reg.MustRegister(id, func(module.Config) (module.Module, error) {
			return stub, nil
		})
	}
	def := workflow.WorkflowDefinition{
		ID: "test-onboarding",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "schedule-call", ModuleID: "schedule", DependsOn: []string{"send-email"}},
		},
	}
	resolver, err := New(def, reg)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func newTestModuleContext(t *testing.T) *module.ModuleContext {
	t.Helper()
	tempDir := t.TempDir()
	cfg := &config.Config{ProjectDir: tempDir, OnboardiaProjectDir: filepath.Join(tempDir, ".onboardia")}
	run := workflow.NewRun(filepath.Join(cfg.OnboardiaProjectDir, "runs"), "test-hire")
	if err := run.Initialize(); err != nil {
		t.Fatalf("init run: %v", err)
	}
	return &module.ModuleContext{
		Config:    cfg,
		Run:       run,
		Artifacts: artifact.NewStore(run),
	}
}

func mustNode(t *testing.T, resolver *Resolver, id string) *Node {
	t.Helper()
	node, ok := resolver.Node(id)
	if !ok {
		t.Fatalf("missing node %s", id)
	}
	return node
}

type stubModule struct {
	info     module.Info
	complete bool
	err      error
}

func newStubModule(id string, complete bool, err error) *stubModule {
	return &stubModule{
		info: module.Info{
			ID:      id,
			Name:    "stub " + id,
			Version: "1.0.0",
		},
		complete: complete,
		err:      err,
	}
}

func (m *stubModule) Info() module.Info {
	return m.info
}

func (m *stubModule) Inputs() []artifact.ArtifactRef {
	return nil
}

func (m *stubModule) Outputs() []artifact.ArtifactRef {
	return nil
}

func (m *stubModule) IsComplete(*module.ModuleContext) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.complete, nil
}

func (m *stubModule) Run(*module.ModuleContext) (module.Result, error) {
	return module.Result{Status: module.StatusCompleted}, nil
}
