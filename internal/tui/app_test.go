package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/coordinator"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/internal/workflow/engine"
)

func TestOnboardingStartAndResumeKeepRunID(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	hire := testHire()

	model, cmd := app.startOnboarding(hire)
	app = runCommands(t, model, cmd)
	if app.workflowView == nil {
		t.Fatalf("workflow view must be initialized")
	}
	firstRun := app.workflowView.state.RunID
	if firstRun == "" {
		t.Fatalf("expected run id to be set")
	}

	app2 := newTestApp(t, projectDir)
	model, cmd = app2.startOnboarding(hire)
	app2 = runCommands(t, model, cmd)
	if app2.workflowView == nil {
		t.Fatalf("restart should attach workflow view")
	}
	if app2.workflowView.state.RunID != firstRun {
		t.Fatalf("expected restart to resume run id, got %s want %s", app2.workflowView.state.RunID, firstRun)
	}
}

func TestHandleModuleRunMarksCompletion(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	model, cmd := app.startOnboarding(testHire())
	app = runCommands(t, model, cmd)
	view := app.workflowView
	if view == nil {
		t.Fatalf("workflow view missing")
	}
	if got := view.state.Status; got != engine.EngineStatusRunning {
		t.Fatalf("expected running status, got %s", got)
	}
	mod, err := view.registry.Resolve("stub-alpha", nil)
	if err != nil {
		t.Fatalf("resolve module: %v", err)
	}
	if _, err := mod.Run(view.moduleCtx); err != nil {
		t.Fatalf("run module: %v", err)
	}
	view.handleModuleRunFinished(moduleRunFinishedMsg{id: "alpha", result: module.Result{Status: module.StatusCompleted}})
	if got := view.state.Status; got != engine.EngineStatusComplete {
		t.Fatalf("expected complete status after step run, got %s", got)
	}
}

func TestEscReturnsToMainMenuAfterCompletion(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	model, cmd := app.startOnboarding(testHire())
	app = runCommands(t, model, cmd)
	view := app.workflowView
	if view == nil {
		t.Fatalf("workflow view missing")
	}
	mod, err := view.registry.Resolve("stub-alpha", nil)
	if err != nil {
		t.Fatalf("resolve module: %v", err)
	}
	if _, err := mod.Run(view.moduleCtx); err != nil {
		t.Fatalf("run module: %v", err)
	}
	finishCmd := view.handleModuleRunFinished(moduleRunFinishedMsg{id: "alpha", result: module.Result{Status: module.StatusCompleted}})
	if finishCmd == nil {
		t.Fatalf("expected completion command")
	}
	if msg := finishCmd(); msg != nil {
		nextModel, nextCmd := app.Update(msg)
		app = runCommands(t, nextModel, nextCmd)
	}
	nextModel, _ := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = nextModel.(*App)
	if app.state != stateMainMenu {
		t.Fatalf("expected return to main menu, got state %d", app.state)
	}
}

func TestHireSelectionListsRecentJuniors(t *testing.T) {
	projectDir := t.TempDir()
	directory := newTestDirectory(t)
	insertEmployee(t, directory, store.Employee{
		Name: "Priya Nair", Email: "priya@example.com", Role: coordinator.DefaultRole,
		Level: coordinator.DefaultLevel, Location: "Bengaluru",
		DateJoined: time.Now().AddDate(0, 0, -3),
	})
	insertEmployee(t, directory, store.Employee{
		Name: "Neeraj Singh", Email: "neeraj@example.com", Role: coordinator.DefaultRole,
		Level: "senior", Location: "Bengaluru",
		DateJoined: time.Now().AddDate(-1, 0, 0),
	})
	app := newTestApp(t, projectDir, WithDirectory(directory))
	model, _ := app.beginHireSelection()
	app = model.(*App)
	if app.state != stateHireSelect {
		t.Fatalf("expected hire selection state, got %d", app.state)
	}
	if len(app.hireChoices) != 1 {
		t.Fatalf("expected one new joiner, got %d", len(app.hireChoices))
	}
	if got := app.hireChoices[0].emp.Email; got != "priya@example.com" {
		t.Fatalf("unexpected hire %s", got)
	}
}

func TestHireSelectionReportsWhenNobodyIsNew(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir, WithDirectory(newTestDirectory(t)))
	model, _ := app.beginHireSelection()
	app = model.(*App)
	if app.state != stateMainMenu {
		t.Fatalf("expected to stay on main menu, got state %d", app.state)
	}
	if app.statusMsg != coordinator.NoJoinersMessage {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
}

func TestChatStopWordEndsConversation(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	model, cmd := app.startChat()
	app = model.(*App)
	if cmd != nil {
		cmd()
	}
	if app.chatView == nil {
		t.Fatalf("chat view missing")
	}
	app.chatView.input.SetValue("quit")
	finish := app.chatView.submit()
	if finish == nil {
		t.Fatalf("expected stop word to end the chat")
	}
	msg := finish()
	if _, ok := msg.(chatFinishedMsg); !ok {
		t.Fatalf("expected chatFinishedMsg, got %T", msg)
	}
	nextModel, _ := app.Update(msg)
	app = nextModel.(*App)
	if app.state != stateMainMenu {
		t.Fatalf("expected return to main menu, got state %d", app.state)
	}
	if app.statusMsg != chatGoodbye {
		t.Fatalf("unexpected goodbye %q", app.statusMsg)
	}
}

func TestChatSendsHistoryToAssistant(t *testing.T) {
	projectDir := t.TempDir()
	chat := &scriptedLLM{reply: "Hello! How can I help?"}
	app := newTestApp(t, projectDir, WithClients(coordinator.Clients{LLM: chat}))
	model, _ := app.startChat()
	app = model.(*App)
	app.chatView.input.SetValue("What benefits do we have?")
	send := app.chatView.submit()
	if send == nil {
		t.Fatalf("expected send command")
	}
	msg := send()
	reply, ok := msg.(chatReplyMsg)
	if !ok {
		t.Fatalf("expected chatReplyMsg, got %T", msg)
	}
	if reply.err != nil {
		t.Fatalf("chat reply: %v", reply.err)
	}
	app.chatView.Update(reply)
	if len(app.chatView.history) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(app.chatView.history))
	}
	if app.chatView.history[1].Content != "Hello! How can I help?" {
		t.Fatalf("unexpected assistant turn %q", app.chatView.history[1].Content)
	}
	if chat.lastPrompt != "What benefits do we have?" {
		t.Fatalf("unexpected prompt %q", chat.lastPrompt)
	}
}

func TestRunsSnapshotReadsRunDirectories(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	run := workflow.NewRun(app.config.RunsDir(), "priya-example-com")
	if err := run.Initialize(); err != nil {
		t.Fatalf("initialize run: %v", err)
	}
	snapshot := app.buildRunsSnapshot()
	if snapshot.err != nil {
		t.Fatalf("snapshot: %v", snapshot.err)
	}
	if len(snapshot.runs) != 1 {
		t.Fatalf("expected one run, got %d", len(snapshot.runs))
	}
	item := snapshot.runs[0]
	if item.ID != "priya-example-com" {
		t.Fatalf("unexpected run id %s", item.ID)
	}
	if item.Stage != workflow.StageWelcomeEmail {
		t.Fatalf("fresh run should sit at the first stage, got %s", item.Stage)
	}
}

func testHire() store.Employee {
	return store.Employee{
		ID: 7, Name: "Kaushal Vachhani", Email: "kaushal@example.com",
		Role: coordinator.DefaultRole, Level: coordinator.DefaultLevel,
		Location: "Bengaluru", ManagerEmail: "lead.de@example.com",
		DateJoined: time.Now().AddDate(0, 0, -2),
	}
}

func newTestDirectory(t *testing.T) *store.Store {
	t.Helper()
	directory, err := store.Open(filepath.Join(t.TempDir(), "employees.db"))
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	if err := directory.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { _ = directory.Close() })
	return directory
}

func insertEmployee(t *testing.T, directory *store.Store, emp store.Employee) {
	t.Helper()
	if _, err := directory.Insert(context.Background(), emp); err != nil {
		t.Fatalf("insert employee: %v", err)
	}
}

func newTestApp(t *testing.T, projectDir string, opts ...AppOption) *App {
	t.Helper()
	loader := func(cfg *config.Config, workflowID string) (workflow.WorkflowDefinition, error) {
		id := strings.TrimSpace(workflowID)
		if id == "" {
			id = "test-workflow"
		}
		return workflow.WorkflowDefinition{
			ID:   id,
			Name: "Test Workflow",
			Modules: []workflow.ModuleRef{
				{ID: "alpha", ModuleID: "stub-alpha", Name: "Alpha"},
			},
		}, nil
	}
	factory := func(*config.Config) (*module.Registry, error) {
		reg := module.NewRegistry()
		reg.MustRegister("stub-alpha", func(module.Config) (module.Module, error) {
			return &stubModule{id: "stub-alpha"}, nil
		})
		return reg, nil
	}
	baseOpts := []AppOption{
		WithWorkflowDefinitionLoader(loader),
		WithModuleRegistryFactory(factory),
		WithClients(coordinator.Clients{LLM: &scriptedLLM{reply: "ok"}}),
	}
	baseOpts = append(baseOpts, opts...)
	app, err := NewApp(projectDir, baseOpts...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		if _, tick := msg.(engineRefreshRequest); tick {
			break
		}
		if _, tick := msg.(runsRefreshMsg); tick {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}

type scriptedLLM struct {
	reply      string
	lastPrompt string
	history    int
}

func (s *scriptedLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.CompleteWithHistory(ctx, systemPrompt, nil, userPrompt)
}

func (s *scriptedLLM) CompleteWithHistory(_ context.Context, _ string, history []llm.Message, userPrompt string) (string, error) {
	s.lastPrompt = userPrompt
	s.history = len(history)
	return s.reply, nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

type stubModule struct {
	id string
}

func (m *stubModule) Info() module.Info {
	return module.Info{ID: m.id, Name: strings.ToUpper(m.id), Version: "1.0.0"}
}

func (m *stubModule) Inputs() []artifact.ArtifactRef { return nil }

func (m *stubModule) Outputs() []artifact.ArtifactRef { return nil }

func (m *stubModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	path := m.markerPath(ctx)
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err == nil {
		return true, nil
	}
	return false, nil
}

func (m *stubModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	path := m.markerPath(ctx)
	if path == "" {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("missing marker path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if err := os.WriteFile(path, []byte("done"), 0o644); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	return module.Result{Status: module.StatusCompleted, Message: "ok"}, nil
}

func (m *stubModule) markerPath(ctx *module.ModuleContext) string {
	if ctx == nil || ctx.Run == nil {
		return ""
	}
	return filepath.Join(ctx.Run.Dir(), "engine-test", m.id+".marker")
}
