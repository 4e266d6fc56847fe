package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/internal/workflow/resolver"
)

func TestEngineStartPersistsState(t *testing.T) {
	eng, repo, ctx, stubs, def := newEngineHarness(t)
	stubs["draft"].setComplete(false)
	state, err := eng.Start(ctx, StartRequest{Definition: def})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.RunID == "" {
		t.Fatalf("expected run id")
	}
	if len(state.Runnable) != 1 || state.Runnable[0] != "draft-email" {
		t.Fatalf("unexpected runnable set: %+v", state.Runnable)
	}
	stored, err := repo.Load()
	if err != nil {
		t.Fatalf("load repo: %v", err)
	}
	if stored.RunID != state.RunID {
		t.Fatalf("persisted run id mismatch: %s vs %s", stored.RunID, state.RunID)
	}
}

func TestEngineResumeRefreshesCompletion(t *testing.T) {
	eng, _, ctx, stubs, def := newEngineHarness(t)
	stubs["draft"].setComplete(false)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	stubs["draft"].setComplete(true)
	state, err := eng.Resume(ctx, ResumeRequest{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(state.Runnable) == 0 || state.Runnable[0] != "send-email" {
		t.Fatalf("expected send-email runnable after draft completion, got %+v", state.Runnable)
	}
	draft := findModule(state, "draft-email")
	if draft.State != resolver.NodeStateComplete {
		t.Fatalf("expected draft complete, got %s", draft.State)
	}
}

func TestEngineUpdateRecordsResultsAndFailures(t *testing.T) {
	eng, _, ctx, stubs, def := newEngineHarness(t)
	stubs["draft"].setComplete(true)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	state, err := eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
		ID:     "draft-email",
		Result: module.Result{Status: module.StatusCompleted, Message: "ok"},
	}}})
	if err != nil {
		t.Fatalf("update complete: %v", err)
	}
	if run, ok := state.Runs["draft-email"]; !ok || run.Status != module.StatusCompleted {
		t.Fatalf("expected run log for draft-email, got %+v", state.Runs["draft-email"])
	}
	stubs["send"].setComplete(false)
	state, err = eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
		ID:     "send-email",
		Result: module.Result{Status: module.StatusFailed, Message: "boom"},
		Err:    errors.New("boom"),
	}}})
	if err != nil {
		t.Fatalf("update failure: %v", err)
	}
	if state.Status != EngineStatusError {
		t.Fatalf("expected engine error after failure, got %s", state.Status)
	}
	if !strings.Contains(state.StatusReason, "send-email") {
		t.Fatalf("expected status reason to reference send-email, got %q", state.StatusReason)
	}
}

func TestEngineDetectsForeignArtifacts(t *testing.T) {
	eng, _, ctx, stubs, def := newEngineHarness(t)
	stubs["draft"].setComplete(true)
	stubs["draft"].setOutputs(artifact.WelcomeEmailDoc)
	writeArtifact(t, ctx, artifact.WelcomeEmailDoc, stubs["draft"].info.ID)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	writeArtifact(t, ctx, artifact.WelcomeEmailDoc, "other-module")
	state, err := eng.Update(ctx, UpdateRequest{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	draft := findModule(state, "draft-email")
	if draft.State != resolver.NodeStateReady {
		t.Fatalf("expected draft ready after invalidation, got %s", draft.State)
	}
	report, ok := draft.Artifacts[artifact.WelcomeEmailDoc.ID]
	if !ok || report.Status != module.ArtifactStatusInvalid {
		t.Fatalf("expected invalid artifact, got %+v", report)
	}
}

func TestEngineClaimAndReleaseRespectsParallelism(t *testing.T) {
	ctx := newTestModuleContext(t)
	def := workflow.WorkflowDefinition{
		ID:      "parallel-onboarding",
		Runtime: workflow.WorkflowRuntimeConfig{MaxParallel: 2},
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "grant-access", ModuleID: "access", DependsOn: []string{"draft-email"}},
		},
	}
	stubs := map[string]*stubModule{
		"draft":  newStubModule("draft"),
		"send":   newStubModule("send"),
		"access": newStubModule("access"),
	}
	stubs["draft"].setComplete(true)
	stubs["send"].setComplete(false)
	stubs["access"].setComplete(false)
	eng, repo := newCustomEngine(t, ctx, stubs)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	maxParallel := 1
	claim, err := eng.Claim(ctx, ClaimRequest{
		Runtime: &RuntimeOverrides{MaxParallel: &maxParallel},
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claim.Claims) != 1 {
		t.Fatalf("expected single claim due to parallel limit, got %d", len(claim.Claims))
	}
	if len(claim.State.Runtime.Running) != 1 {
		t.Fatalf("expected runtime to track running module, got %+v", claim.State.Runtime.Running)
	}
	secondClaim, err := eng.Claim(ctx, ClaimRequest{Runtime: &RuntimeOverrides{MaxParallel: &maxParallel}, Limit: 1})
	if err != nil {
		t.Fatalf("claim while running: %v", err)
	}
	if len(secondClaim.Claims) != 0 {
		t.Fatalf("expected no claims while capacity exhausted, got %+v", secondClaim.Claims)
	}
	firstID := claim.Claims[0].ID
	if _, err := eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
		ID:     firstID,
		Result: module.Result{Status: module.StatusCompleted},
	}}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	state, err := repo.Load()
	if err != nil {
		t.Fatalf("load repo: %v", err)
	}
	if len(state.Runtime.Running) != 0 {
		t.Fatalf("expected running set cleared after completion, got %+v", state.Runtime.Running)
	}
	thirdClaim, err := eng.Claim(ctx, ClaimRequest{Limit: 1})
	if err != nil {
		t.Fatalf("claim remaining module: %v", err)
	}
	if len(thirdClaim.Claims) != 1 {
		t.Fatalf("expected to claim remaining module, got %d", len(thirdClaim.Claims))
	}
	if _, err := eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
		ID:     thirdClaim.Claims[0].ID,
		Result: module.Result{Status: module.StatusFailed},
		Err:    errors.New("boom"),
	}}}); err != nil {
		t.Fatalf("update failure: %v", err)
	}
	state, err = repo.Load()
	if err != nil {
		t.Fatalf("load repo: %v", err)
	}
	if len(state.Runtime.Running) != 0 {
		t.Fatalf("expected running set empty after failure, got %+v", state.Runtime.Running)
	}
}

func TestEngineClaimFiltersRequestedModules(t *testing.T) {
	ctx := newTestModuleContext(t)
	def := workflow.WorkflowDefinition{
		ID: "fanout-onboarding",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "grant-access", ModuleID: "access", DependsOn: []string{"draft-email"}},
		},
	}
	stubs := map[string]*stubModule{
		"draft":  newStubModule("draft"),
		"send":   newStubModule("send"),
		"access": newStubModule("access"),
	}
	stubs["draft"].setComplete(true)
	eng, repo := newCustomEngine(t, ctx, stubs)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	claim, err := eng.Claim(ctx, ClaimRequest{Modules: []string{"grant-access"}, Limit: 2})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claim.Claims) != 1 || claim.Claims[0].ID != "grant-access" {
		t.Fatalf("expected single access claim, got %+v", claim.Claims)
	}
	if len(claim.State.Runtime.Running) != 1 || claim.State.Runtime.Running[0] != "grant-access" {
		t.Fatalf("running set mismatch: %+v", claim.State.Runtime.Running)
	}
	if len(claim.State.Runnable) != 1 || claim.State.Runnable[0] != "send-email" {
		t.Fatalf("expected send to remain runnable, got %+v", claim.State.Runnable)
	}
	stored, err := repo.Load()
	if err != nil {
		t.Fatalf("load repo: %v", err)
	}
	if len(stored.Runtime.Running) != 1 || stored.Runtime.Running[0] != "grant-access" {
		t.Fatalf("persisted running set mismatch: %+v", stored.Runtime.Running)
	}
}

func TestEngineResumeHonorsTargetOverrides(t *testing.T) {
	eng, repo, ctx, stubs, def := newEngineHarness(t)
	stubs["draft"].setComplete(true)
	if _, err := eng.Start(ctx, StartRequest{Definition: def}); err != nil {
		t.Fatalf("start: %v", err)
	}
	stubs["send"].setComplete(true)
	targets := []string{"schedule-call"}
	batchSize := 1
	maxParallel := 1
	state, err := eng.Resume(ctx, ResumeRequest{Runtime: &RuntimeOverrides{
		Targets:     &targets,
		BatchSize:   &batchSize,
		MaxParallel: &maxParallel,
	}})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(state.Runnable) != 1 || state.Runnable[0] != "schedule-call" {
		t.Fatalf("expected schedule runnable, got %+v", state.Runnable)
	}
	if len(state.Runtime.Targets) != 1 || state.Runtime.Targets[0] != "schedule-call" {
		t.Fatalf("expected targets persisted, got %+v", state.Runtime.Targets)
	}
	if state.Runtime.BatchSize != 1 || state.Runtime.MaxParallel != 1 {
		t.Fatalf("runtime overrides missing: %+v", state.Runtime)
	}
	stored, err := repo.Load()
	if err != nil {
		t.Fatalf("load repo: %v", err)
	}
	if len(stored.Runtime.Targets) != 1 || stored.Runtime.Targets[0] != "schedule-call" {
		t.Fatalf("persisted targets mismatch: %+v", stored.Runtime.Targets)
	}
}

func findModule(state State, id string) ModuleStatus {
	for _, mod := range state.Nodes {
		if mod.ID == id {
			return mod
		}
	}
	return ModuleStatus{}
}

func newEngineHarness(t *testing.T) (*Engine, *Repository, *module.ModuleContext, map[string]*stubModule, workflow.WorkflowDefinition) {
	t.Helper()
	ctx := newTestModuleContext(t)
	stubs := map[string]*stubModule{
		"draft":    newStubModule("draft"),
		"send":     newStubModule("send"),
		"schedule": newStubModule("schedule"),
	}
	eng, repo := newCustomEngine(t, ctx, stubs)
	def := workflow.WorkflowDefinition{
		ID: "test-onboarding",
		Modules: []workflow.ModuleRef{
			{ID: "draft-email", ModuleID: "draft"},
			{ID: "send-email", ModuleID: "send", DependsOn: []string{"draft-email"}},
			{ID: "schedule-call", ModuleID: "schedule", DependsOn: []string{"send-email"}},
		},
	}
	return eng, repo, ctx, stubs, def
}

func newCustomEngine(t *testing.T, ctx *module.ModuleContext, stubs map[string]*stubModule) (*Engine, *Repository) {
	t.Helper()
	reg := module.NewRegistry()
	for id, stub := range stubs {
		stub := stub
		reg.MustRegister(id, func(module.Config) (module.Module, error) {
			return stub, nil
		})
	}
	repo := NewRepository(ctx.Run)
	clock := &testClock{value: time.Unix(0, 0)}
	eng, err := New(reg, repo, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, repo
}

type testClock struct {
	value time.Time
}

func (c *testClock) Now() time.Time {
	c.value = c.value.Add(time.Second)
	return c.value
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

func newStubModule(id string) *stubModule {
	return &stubModule{
		info: module.Info{
			ID:      id,
			Name:    "stub " + id,
			Version: "1.0.0",
		},
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

func (m *stubModule) setComplete(value bool) {
	m.complete = value
}

func (m *stubModule) setOutputs(refs ...artifact.ArtifactRef) {
	m.outputs = append([]artifact.ArtifactRef{}, refs...)
}

func writeArtifact(t *testing.T, ctx *module.ModuleContext, ref artifact.ArtifactRef, moduleID string) {
	t.Helper()
	meta := artifact.Metadata{
		ArtifactID: ref.ID,
		ModuleID:   moduleID,
		Version:    "1.0.0",
		Run:        ctx.Run.ID(),
	}
	if err := ctx.Artifacts.Write(ref, []byte("body"), meta); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}
