package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/internal/workflow/resolver"
)

func TestSchedulerReturnsConcurrentReadyNodes(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft":  newStubModule("draft", true, nil),
		"send":   newStubModule("send", false, nil),
		"access": newStubModule("access", false, nil),
	}
	def := workflow.WorkflowDefinition{
		ID: "test",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "grant-access", ModuleID: "access", DependsOn: []string{"draft-email"}},
		},
	}
	sched := buildScheduler(t, stubs, def)
	batch, err := sched.Runnable(RunnableRequest{BatchSize: 2})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(batch.Nodes))
	}
	if batch.Nodes[0].ID != "send-email" || batch.Nodes[1].ID != "grant-access" {
		t.Fatalf("unexpected order: %v", []string{batch.Nodes[0].ID, batch.Nodes[1].ID})
	}
}

func TestSchedulerSkipsInvalidArtifacts(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft": newStubModule("draft", true, nil),
		"send":  newStubModule("send", false, nil),
	}
	stubs["draft"].outputs = []artifact.ArtifactRef{artifact.WelcomeEmailDoc}
	def := workflow.WorkflowDefinition{
		ID: "test",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
		},
	}
	res, ctx := buildResolverForTest(t, stubs, def)
	meta := artifact.Metadata{
		ArtifactID: artifact.WelcomeEmailDoc.ID,
		ModuleID:   "other-module",
		Version:    stubs["draft"].info.Version,
		Run:        ctx.Run.ID(),
	}
	if err := ctx.Artifacts.Write(artifact.WelcomeEmailDoc, []byte("body"), meta); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := res.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sched, err := New(res)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	node, ok := res.Node("draft-email")
	if !ok {
		t.Fatalf("missing draft-email node")
	}
	report, ok := node.Artifacts[artifact.WelcomeEmailDoc.ID]
	if !ok {
		t.Fatalf("expected artifact report for welcome email doc")
	}
	if report.Status != module.ArtifactStatusInvalid {
		t.Fatalf("expected invalid artifact status, got %s", report.Status)
	}
	if node.State != resolver.NodeStateReady {
		t.Fatalf("expected draft-email marked ready for rerun, got %s", node.State)
	}
	batch, err := sched.Runnable(RunnableRequest{Targets: []string{"draft-email"}})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 1 || batch.Nodes[0].ID != "draft-email" {
		t.Fatalf("expected draft-email to rerun, got %+v", batch.Nodes)
	}
	if len(batch.Skipped) != 0 {
		t.Fatalf("expected no skips for invalid artifact rerun, got %+v", batch.Skipped)
	}
}

func TestSchedulerEnforcesParallelLimit(t *testing.T) {
	stubs := map[string]*stubModule{
		"draft":  newStubModule("draft", true, nil),
		"send":   newStubModule("send", false, nil),
		"access": newStubModule("access", false, nil),
	}
	def := workflow.WorkflowDefinition{
		ID: "test",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "grant-access", ModuleID: "access", DependsOn: []string{"draft-email"}},
		},
	}
	sched := buildScheduler(t, stubs, def)
	batch, err := sched.Runnable(RunnableRequest{BatchSize: 2, MaxParallel: 1})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 1 || batch.Nodes[0].ID != "send-email" {
		t.Fatalf("expected single runnable node respecting limit, got %+v", batch.Nodes)
	}
	batch, err = sched.Runnable(RunnableRequest{MaxParallel: 1, Running: []string{"send-email"}})
	if err != nil {
		t.Fatalf("runnable: %v", err)
	}
	if len(batch.Nodes) != 0 {
		t.Fatalf("expected zero runnable nodes when capacity exhausted")
	}
	if len(batch.Skipped) == 0 {
		t.Fatalf("expected concurrency skip reason when capacity exhausted")
	}
}

func buildScheduler(t *testing.T, stubs map[string]*stubModule, def workflow.WorkflowDefinition) *Scheduler {
	t.Helper()
	res, ctx := buildResolverForTest(t, stubs, def)
	if err := res.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sched, err := New(res)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func buildResolverForTest(t *testing.T, stubs map[string]*stubModule, def workflow.WorkflowDefinition) (*resolver.Resolver, *module.ModuleContext) {
	t.Helper()
	reg := module.NewRegistry()
	for id, stub := range stubs {
		id := id
		stub := stub
		reg.MustRegister(id, func(module.Config) (module.Module, error) {
			return stub, nil
		})
	}
	res, err := resolver.New(def, reg)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return res, newTestModuleContext(t)
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

type stubModule struct {
	info     module.Info
	complete bool
	err      error
	outputs  []artifact.ArtifactRef
}

func newStubModule(id string, complete bool, err error) *stubModule {
	return &stubModule{
		info:     module.Info{ID: id, Name: "stub " + id, Version: "1.0.0"},
		complete: complete,
		err:      err,
	}
}

func (m *stubModule) Info() module.Info { return m.info }

func (m *stubModule) Inputs() []artifact.ArtifactRef { return nil }

func (m *stubModule) Outputs() []artifact.ArtifactRef {
	if len(m.outputs) == 0 {
		return nil
	}
	out := make([]artifact.ArtifactRef, len(m.outputs))
	copy(out, m.outputs)
	return out
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
