// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for Onboardia.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/onboardia/onboardia/internal/asana"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/coordinator"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/logbook"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/workflow"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu   appState = iota // Main menu with "Run Onboarding Workflow", etc.
	stateHireSelect                 // New joiner picker before launching the engine
	stateOnboarding                 // Running a hire's onboarding pipeline
	stateChat                       // Free-form chat with the HR assistant
)

const (
	boardRefreshInterval  = 3 * time.Second
	defaultMentorCapacity = 3
)

// WorkflowDefinitionLoader resolves workflow definitions for the engine-backed view.
type WorkflowDefinitionLoader func(cfg *config.Config, workflowID string) (workflow.WorkflowDefinition, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithWorkflowDefinitionLoader overrides the workflow definition loader used by the TUI.
func WithWorkflowDefinitionLoader(loader WorkflowDefinitionLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.workflowLoader = loader
		}
	}
}

// WithModuleRegistryFactory allows tests to inject custom module registries.
func WithModuleRegistryFactory(factory func(*config.Config) (*module.Registry, error)) AppOption {
	return func(a *App) {
		if factory != nil {
			a.registryFactory = factory
		}
	}
}

// WithClients injects preconstructed service clients (used by tests to avoid
// hitting Google, Asana, or an LLM).
func WithClients(clients coordinator.Clients) AppOption {
	return func(a *App) {
		a.clients = clients
		a.clientsReady = true
	}
}

// WithDirectory injects a preopened employee directory.
func WithDirectory(directory *store.Store) AppOption {
	return func(a *App) {
		a.directory = directory
	}
}

var stageOrder = []workflow.Stage{
	workflow.StageWelcomeEmail,
	workflow.StageSendEmail,
	workflow.StageAsanaAccess,
	workflow.StageMentorMatch,
	workflow.StageIntroCall,
	workflow.StageComplete,
}

type boardFocus int

const (
	focusMenu boardFocus = iota
	focusRuns
)

type runsRefreshMsg struct {
	runs []runItem
	err  error
}

type runItem struct {
	ID          string
	Stage       workflow.Stage
	LastUpdated time.Time
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state     appState
	config    *config.Config
	logbook   *logbook.Logbook
	directory *store.Store
	mentors   *roster.Roster

	clients      coordinator.Clients
	clientsReady bool

	workflowLoader  WorkflowDefinitionLoader
	registryFactory func(*config.Config) (*module.Registry, error)
	workflowView    *workflowView
	chatView        *chatView
	hireChoices     []hireOption

	// UI components
	mainMenu      list.Model // The main menu list
	hireMenu      list.Model // New joiner picker
	statusMsg     string     // Status message to display
	err           error      // Any error to display
	lastLogStatus string

	// Window size (we get this from bubbletea)
	width  int
	height int

	// Status board data
	boardFocus   boardFocus
	runItems     []runItem
	runSelection int
	boardErr     string
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

type hireOption struct {
	emp store.Employee
}

func (o hireOption) Title() string { return o.emp.Name }
func (o hireOption) Description() string {
	return fmt.Sprintf("%s · %s · joined %s", o.emp.Email, o.emp.Location, o.emp.DateJoined.Format("2006-01-02"))
}
func (o hireOption) FilterValue() string { return o.emp.Email }

// NewApp creates a new App instance
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(cfg.LogsDir(), "onboardia.log")
	lb, err := logbook.New(logPath)
	if err == nil {
		lb.Info("session opened")
	}

	mainMenu := list.New(buildMainMenu(), list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⬡ ONBOARDIA"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)
	hireMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	hireMenu.Title = "Select New Joiner"
	hireMenu.SetShowStatusBar(false)
	hireMenu.SetFilteringEnabled(false)

	app := &App{
		state:           stateMainMenu,
		config:          cfg,
		logbook:         lb,
		workflowLoader:  defaultWorkflowLoader,
		registryFactory: defaultModuleRegistryFactory,
		mainMenu:        mainMenu,
		hireMenu:        hireMenu,
		boardFocus:      focusMenu,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.directory == nil {
		directory, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("tui: open employee directory: %w", err)
		}
		if err := directory.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("tui: prepare employee directory: %w", err)
		}
		app.directory = directory
	}
	if app.mentors == nil {
		capacity := cfg.Project.Onboarding.MentorCapacity
		if capacity < 1 {
			capacity = defaultMentorCapacity
		}
		mentors, err := roster.Load(filepath.Join(cfg.StateDir(), "mentors.json"), capacity)
		if err != nil {
			app.logWarn("mentor roster unavailable: %v", err)
		} else {
			app.mentors = mentors
		}
	}
	if !app.clientsReady {
		app.clients = app.buildClients()
		app.clientsReady = true
	}
	return app, nil
}

// buildClients wires the external services from config. Missing credentials
// leave the corresponding client nil so the relevant step reports a clear
// failure instead of the whole TUI refusing to start.
func (a *App) buildClients() coordinator.Clients {
	var clients coordinator.Clients
	cfg := a.config

	apiKey := cfg.Secrets.GeminiAPIKey
	if strings.EqualFold(cfg.Project.LLM.Provider, "anthropic") {
		apiKey = cfg.Secrets.AnthropicAPIKey
	}
	if apiKey != "" {
		chat, err := llm.New(cfg.Project.LLM.Provider, cfg.Project.Model(), apiKey)
		if err != nil {
			a.logWarn("llm client unavailable: %v", err)
		} else {
			clients.LLM = chat
		}
	} else {
		a.logWarn("no LLM API key configured; email drafting and chat disabled")
	}

	auth := googleapi.NewAuthenticator(cfg.GoogleCredentialsPath(), cfg.GoogleTokenPath())
	if auth.HasToken() {
		if httpClient, err := auth.Client(context.Background()); err == nil {
			clients.Mail = googleapi.NewGmail(httpClient)
			clients.Calendar = googleapi.NewCalendar(httpClient)
		} else {
			a.logWarn("google client unavailable: %v", err)
		}
	} else {
		a.logWarn("no google token; run `onboardia auth` to enable gmail and calendar")
	}

	if cfg.Secrets.AsanaPAT != "" {
		clients.Tasks = asana.New(asana.Config{
			PAT:          cfg.Secrets.AsanaPAT,
			WorkspaceGID: cfg.Secrets.AsanaWorkspaceGID,
			ProjectGID:   cfg.Secrets.AsanaProjectGID,
		})
	} else {
		a.logWarn("no asana token; workspace invites disabled")
	}
	return clients
}

// buildMainMenu creates the main menu items
func buildMainMenu() []list.Item {
	return []list.Item{
		menuItem{title: "Run Onboarding Workflow", desc: "Onboard recent junior data engineer hires"},
		menuItem{title: "Chat with Onboardia", desc: "Ask the HR assistant anything"},
		menuItem{title: "Exit", desc: "Quit Onboardia"},
	}
}

// hireCriteria reads the new joiner query parameters from config, keeping the
// built-in defaults for anything left unset.
func (a *App) hireCriteria() (role, level string, windowDays int) {
	onb := a.config.Project.Onboarding
	role, level, windowDays = onb.Role, onb.Level, onb.WindowDays
	if role == "" {
		role = coordinator.DefaultRole
	}
	if level == "" {
		level = coordinator.DefaultLevel
	}
	if windowDays < 1 {
		windowDays = coordinator.DefaultWindowDays
	}
	return role, level, windowDays
}

func (a *App) refreshHireMenu() error {
	role, level, window := a.hireCriteria()
	joiners, err := a.directory.NewJoiners(context.Background(), role, level, window, time.Now())
	if err != nil {
		return err
	}
	options := make([]hireOption, 0, len(joiners))
	items := make([]list.Item, 0, len(joiners))
	for _, hire := range joiners {
		opt := hireOption{emp: hire}
		options = append(options, opt)
		items = append(items, opt)
	}
	a.hireChoices = options
	a.hireMenu.SetItems(items)
	if len(items) > 0 {
		a.hireMenu.Select(0)
	}
	return nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) logProgress(status string) {
	status = strings.TrimSpace(status)
	if status == "" || status == a.lastLogStatus {
		return
	}
	a.lastLogStatus = status
	a.logInfo(status)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.fetchRunsSnapshot()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		a.hireMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.state == stateOnboarding && a.workflowView != nil {
			return a, a.workflowView.Update(msg)
		}
		if a.state == stateChat && a.chatView != nil {
			return a, a.chatView.Update(msg)
		}
		return a, nil

	case runsRefreshMsg:
		if msg.err != nil {
			a.boardErr = msg.err.Error()
		} else {
			a.boardErr = ""
			a.runItems = msg.runs
			if len(a.runItems) == 0 {
				a.runSelection = 0
			} else if a.runSelection >= len(a.runItems) {
				a.runSelection = len(a.runItems) - 1
			}
		}
		return a, a.scheduleRunsRefresh()

	case chatFinishedMsg:
		model, cmd := a.returnToMainMenu()
		a.statusMsg = chatGoodbye
		return model, cmd

	case workflowFinishedMsg:
		a.logInfo("run %s finished: %s", msg.RunID, msg.Status)
		return a, a.fetchRunsSnapshot()

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateChat && a.chatView != nil {
				return a.returnToMainMenu()
			}
			if a.state != stateMainMenu {
				return a.returnToMainMenu()
			}
		case "r":
			if a.state == stateMainMenu {
				a.statusMsg = "Refreshing runs..."
				return a, a.fetchRunsSnapshot()
			}
		case "tab":
			if a.state == stateMainMenu {
				if a.boardFocus == focusMenu && len(a.runItems) > 0 {
					a.boardFocus = focusRuns
				} else {
					a.boardFocus = focusMenu
				}
			}
		case "right", "l":
			if a.state == stateMainMenu && len(a.runItems) > 0 {
				a.boardFocus = focusRuns
			}
		case "left", "h":
			if a.state == stateMainMenu {
				a.boardFocus = focusMenu
			}
		case "up", "k":
			if a.state == stateMainMenu && a.boardFocus == focusRuns && len(a.runItems) > 0 {
				if a.runSelection > 0 {
					a.runSelection--
				}
				return a, nil
			}
		case "down", "j":
			if a.state == stateMainMenu && a.boardFocus == focusRuns && len(a.runItems) > 0 {
				if a.runSelection < len(a.runItems)-1 {
					a.runSelection++
				}
				return a, nil
			}
		case "enter":
			switch a.state {
			case stateHireSelect:
				return a.confirmHireSelection()
			case stateMainMenu:
				if a.boardFocus == focusRuns {
					return a, nil
				}
				return a.handleMainMenuSelection()
			}
		}

	}

	var cmds []tea.Cmd
	switch a.state {
	case stateMainMenu:
		if a.boardFocus == focusMenu {
			var menuCmd tea.Cmd
			a.mainMenu, menuCmd = a.mainMenu.Update(msg)
			if menuCmd != nil {
				cmds = append(cmds, menuCmd)
			}
		}
	case stateHireSelect:
		var menuCmd tea.Cmd
		a.hireMenu, menuCmd = a.hireMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateOnboarding:
		if a.workflowView != nil {
			if cmd := a.workflowView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	case stateChat:
		if a.chatView != nil {
			if cmd := a.chatView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}

	return a, tea.Batch(cmds...)
}

// handleMainMenuSelection processes menu item selection
func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}

	switch item.title {
	case "Run Onboarding Workflow":
		a.logInfo("menu: run onboarding workflow")
		return a.beginHireSelection()

	case "Chat with Onboardia":
		a.logInfo("menu: chat")
		return a.startChat()

	case "Exit":
		a.logInfo("menu: exit")
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) beginHireSelection() (tea.Model, tea.Cmd) {
	if err := a.refreshHireMenu(); err != nil {
		a.statusMsg = fmt.Sprintf("Directory query failed: %v", err)
		a.logError("directory query failed: %v", err)
		return a, nil
	}
	if len(a.hireChoices) == 0 {
		role, _, window := a.hireCriteria()
		a.statusMsg = coordinator.NoJoinersMessageFor(role, window)
		return a, nil
	}
	a.state = stateHireSelect
	a.boardFocus = focusMenu
	if a.width > 0 && a.height > 0 {
		a.hireMenu.SetSize(max(0, a.width-6), max(0, a.height-10))
	}
	a.statusMsg = "Select a hire to onboard"
	return a, nil
}

func (a *App) confirmHireSelection() (tea.Model, tea.Cmd) {
	item, ok := a.hireMenu.SelectedItem().(hireOption)
	if !ok {
		a.statusMsg = "Hire selection unavailable"
		return a, nil
	}
	a.logInfo("hire selected: %s", item.emp.Email)
	return a.startOnboarding(item.emp)
}

// startOnboarding bootstraps the workflow engine UI for one hire.
func (a *App) startOnboarding(hire store.Employee) (tea.Model, tea.Cmd) {
	a.state = stateOnboarding
	a.workflowView = newWorkflowView(a, hire)
	cmd := a.workflowView.Init()
	return a, cmd
}

func (a *App) startChat() (tea.Model, tea.Cmd) {
	if a.clients.LLM == nil {
		a.statusMsg = "Chat requires an LLM API key (GEMINI_API_KEY or ANTHROPIC_API_KEY)"
		return a, nil
	}
	a.state = stateChat
	a.chatView = newChatView(a)
	return a, a.chatView.Init()
}

// returnToMainMenu transitions back to the main menu
func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.workflowView = nil
	a.chatView = nil
	a.mainMenu.SetItems(buildMainMenu())
	return a, a.fetchRunsSnapshot()
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
	}
	if leftWidth < 20 {
		leftWidth = width
		rightWidth = 0
	}
	if a.state == stateMainMenu && a.boardFocus == focusMenu {
		a.mainMenu.SetSize(max(20, leftWidth-4), max(10, a.height-10))
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateHireSelect:
		content = a.renderHireSelection()
	case stateOnboarding:
		if a.workflowView != nil {
			content = a.workflowView.View()
		} else {
			content = "Loading pipeline..."
		}
	case stateChat:
		if a.chatView != nil {
			content = a.chatView.View()
		}
	}
	return a.renderStatusBoard(content, leftWidth, rightWidth)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(8)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
	return box
}

func (a *App) renderStatusBoard(mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF3621")).
		MarginBottom(1).
		Render("⬡ ONBOARDIA")
	left := lipgloss.JoinVertical(lipgloss.Left,
		a.renderStagePanel(leftWidth-4),
		"",
		a.renderMainArea(mainContent, leftWidth-4),
	)
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, leftWidth)).
		Render(left)
	var body string
	if rightWidth > 0 {
		right := a.renderRunsPanel(rightWidth - 4)
		rightBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(max(20, rightWidth)).
			Render(right)
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	} else {
		body = leftBox
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderStagePanel(width int) string {
	var lines []string
	if len(a.runItems) > 0 && a.runSelection < len(a.runItems) {
		item := a.runItems[a.runSelection]
		pos, total := stagePosition(item.Stage)
		lines = append(lines, fmt.Sprintf("Run: %s", item.ID))
		lines = append(lines, fmt.Sprintf("Stage: %s (%d/%d)", friendlyLabel(string(item.Stage)), pos+1, total))
		if next := upcomingStages(item.Stage); len(next) > 0 {
			names := make([]string, 0, len(next))
			for _, s := range next {
				names = append(names, friendlyLabel(string(s)))
			}
			lines = append(lines, fmt.Sprintf("Next: %s", strings.Join(names, ", ")))
		}
	} else {
		lines = append(lines, "No onboarding runs yet")
	}
	if a.boardErr != "" {
		lines = append(lines, fmt.Sprintf("⚠ %s", a.boardErr))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderMainArea(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		content = "Ready to onboard."
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(content)
}

func (a *App) renderHireSelection() string {
	view := a.hireMenu.View()
	if strings.TrimSpace(view) == "" {
		view = "No new joiners found"
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("Enter → onboard hire    Esc → cancel")
	return lipgloss.JoinVertical(lipgloss.Left, view, hint)
}

func (a *App) renderRunsPanel(width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Runs (%d)", len(a.runItems)))
	if len(a.runItems) == 0 {
		note := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).
			Render("No onboarding runs yet. Run the workflow to get started.")
		return lipgloss.JoinVertical(lipgloss.Left, title, note)
	}
	var rows []string
	for i, item := range a.runItems {
		selected := a.boardFocus == focusRuns && i == a.runSelection
		rows = append(rows, a.renderRunItem(item, selected, width))
	}
	body := strings.Join(rows, "\n")
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (a *App) renderRunItem(item runItem, selected bool, width int) string {
	line1 := item.ID
	line2 := fmt.Sprintf("Stage: %s", friendlyLabel(string(item.Stage)))
	if item.Stage == workflow.StageComplete {
		line2 = "✓ Onboarded"
	}
	if !item.LastUpdated.IsZero() {
		line2 += fmt.Sprintf(" · updated %s ago", humanizeDuration(time.Since(item.LastUpdated)))
	}
	content := strings.Join([]string{line1, line2}, "\n")
	style := lipgloss.NewStyle().Width(max(20, width)).Padding(0, 0, 1, 0)
	if selected {
		style = style.Bold(true).Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	}
	return style.Render(content)
}

func (a *App) fetchRunsSnapshot() tea.Cmd {
	return func() tea.Msg {
		return a.buildRunsSnapshot()
	}
}

func (a *App) scheduleRunsRefresh() tea.Cmd {
	return tea.Tick(boardRefreshInterval, func(time.Time) tea.Msg {
		return a.buildRunsSnapshot()
	})
}

func (a *App) buildRunsSnapshot() runsRefreshMsg {
	runsDir := a.config.RunsDir()
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return runsRefreshMsg{}
		}
		return runsRefreshMsg{err: err}
	}
	items := make([]runItem, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run := workflow.NewRun(runsDir, entry.Name())
		item := runItem{ID: entry.Name(), Stage: run.CurrentStage()}
		if info, err := entry.Info(); err == nil {
			item.LastUpdated = info.ModTime()
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastUpdated.After(items[j].LastUpdated)
	})
	return runsRefreshMsg{runs: items}
}

func friendlyLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	replacer := strings.NewReplacer("_", " ", "-", " ")
	words := strings.Fields(replacer.Replace(strings.ToLower(value)))
	if len(words) == 0 {
		return ""
	}
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func stagePosition(s workflow.Stage) (int, int) {
	for i, stage := range stageOrder {
		if s == stage {
			return i, len(stageOrder)
		}
	}
	return len(stageOrder), len(stageOrder)
}

func upcomingStages(s workflow.Stage) []workflow.Stage {
	pos, _ := stagePosition(s)
	if pos+1 >= len(stageOrder) {
		return nil
	}
	return stageOrder[pos+1:]
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
