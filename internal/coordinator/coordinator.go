// Package coordinator drives the onboarding pipeline across every new joiner
// found in the employee directory. Each hire gets an isolated run directory,
// and a failure in one hire's pipeline never stops the others.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/logbook"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/workflow"
	"github.com/onboardia/onboardia/internal/workflow/engine"
)

// Defaults for the new joiner query, used when the onboarding section of
// config.yaml leaves a knob unset.
const (
	DefaultRole       = "Data Engineer"
	DefaultLevel      = "junior"
	DefaultWindowDays = 14
)

// NoJoinersMessage is reported when the directory query comes back empty
// under the default criteria.
const NoJoinersMessage = "No new Data Engineers found in the last 14 days."

// NoJoinersMessageFor renders the empty-sweep message for the active criteria.
func NoJoinersMessageFor(role string, windowDays int) string {
	return fmt.Sprintf("No new %ss found in the last %d days.", role, windowDays)
}

// Clients bundles the external services every pipeline step may need.
type Clients struct {
	LLM      llm.Client
	Mail     module.EmailSender
	Calendar module.EventScheduler
	Tasks    module.TaskService
}

// StepFailure records a single module failure for one hire.
type StepFailure struct {
	Employee string `json:"employee"`
	Module   string `json:"module"`
	Error    string `json:"error"`
}

// RunSummary aggregates the outcome of one onboarding sweep.
type RunSummary struct {
	Processed int           `json:"processed"`
	Successes int           `json:"successes"`
	Failures  []StepFailure `json:"failures,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Failed reports whether any hire's pipeline recorded a failure.
func (s RunSummary) Failed() bool {
	return len(s.Failures) > 0
}

// Coordinator runs the onboarding workflow for each eligible hire.
type Coordinator struct {
	cfg       *config.Config
	registry  *module.Registry
	directory *store.Store
	mentors   *roster.Roster
	clients   Clients
	lb        *logbook.Logbook
	def       workflow.WorkflowDefinition
	now       func() time.Time
}

// Option customizes coordinator behavior.
type Option func(*Coordinator)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefinition overrides the built-in new joiner pipeline.
func WithDefinition(def workflow.WorkflowDefinition) Option {
	return func(c *Coordinator) {
		c.def = def
	}
}

// WithLogbook attaches a logbook shared by every per-hire run.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(c *Coordinator) {
		c.lb = lb
	}
}

// WithRoster attaches mentor capacity tracking.
func WithRoster(mentors *roster.Roster) Option {
	return func(c *Coordinator) {
		c.mentors = mentors
	}
}

// New builds a coordinator for the given directory and service clients.
func New(cfg *config.Config, registry *module.Registry, directory *store.Store, clients Clients, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("coordinator: config is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("coordinator: module registry is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("coordinator: employee directory is required")
	}
	c := &Coordinator{
		cfg:       cfg,
		registry:  registry,
		directory: directory,
		clients:   clients,
		def:       workflow.NewJoinerDefinition(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnboardNewJoiners finds recent junior data engineer hires and runs the full
// pipeline for each one. Failures are collected per step and the sweep keeps
// going, so one broken hire does not block the rest of the batch.
func (c *Coordinator) OnboardNewJoiners(ctx context.Context) (RunSummary, error) {
	role, level, window := c.criteria()
	joiners, err := c.directory.NewJoiners(ctx, role, level, window, c.now())
	if err != nil {
		return RunSummary{}, fmt.Errorf("coordinator: query new joiners: %w", err)
	}
	if len(joiners) == 0 {
		c.logf(logbook.LevelInfo, "no new joiners found")
		return RunSummary{Message: NoJoinersMessageFor(role, window)}, nil
	}

	// Each hire has an isolated run directory, and the roster and logbook
	// are safe for concurrent use, so hires can onboard in parallel up to
	// the configured worker bound.
	workers := c.cfg.Project.Onboarding.MaxParallel
	if workers < 1 {
		workers = 1
	}
	if workers > len(joiners) {
		workers = len(joiners)
	}

	summary := RunSummary{Processed: len(joiners)}
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan store.Employee)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hire := range jobs {
				failures := c.OnboardEmployee(ctx, hire)
				mu.Lock()
				if len(failures) == 0 {
					summary.Successes++
				} else {
					summary.Failures = append(summary.Failures, failures...)
				}
				mu.Unlock()
			}
		}()
	}
	for _, hire := range joiners {
		jobs <- hire
	}
	close(jobs)
	wg.Wait()

	c.logf(logbook.LevelInfo, "sweep finished: %d processed, %d succeeded, %d failures",
		summary.Processed, summary.Successes, len(summary.Failures))
	return summary, nil
}

// criteria returns the new joiner query parameters from the project config,
// keeping the built-in defaults for anything left unset.
func (c *Coordinator) criteria() (role, level string, windowDays int) {
	role = c.cfg.Project.Onboarding.Role
	if role == "" {
		role = DefaultRole
	}
	level = c.cfg.Project.Onboarding.Level
	if level == "" {
		level = DefaultLevel
	}
	windowDays = c.cfg.Project.Onboarding.WindowDays
	if windowDays < 1 {
		windowDays = DefaultWindowDays
	}
	return role, level, windowDays
}

// OnboardEmployee runs the pipeline for a single hire and returns any step
// failures. A hire whose run is already complete is a no-op.
func (c *Coordinator) OnboardEmployee(ctx context.Context, hire store.Employee) []StepFailure {
	run := workflow.NewRun(c.cfg.RunsDir(), workflow.RunIDForEmail(hire.Email))
	if err := run.Initialize(); err != nil {
		return []StepFailure{{Employee: hire.Email, Module: "init", Error: err.Error()}}
	}
	if run.Onboarded() {
		c.logf(logbook.LevelInfo, "%s: already onboarded, skipping", hire.Email)
		return nil
	}
	mctx := module.NewContext(c.cfg, run, &hire, c.lb).
		WithContext(ctx).
		WithClients(c.clients.LLM, c.clients.Mail, c.clients.Calendar, c.clients.Tasks).
		WithDirectory(c.directory, c.mentors)
	mctx.Now = c.now

	eng, err := engine.New(c.registry, engine.NewRepository(run), engine.WithClock(c.now))
	if err != nil {
		return []StepFailure{{Employee: hire.Email, Module: "engine", Error: err.Error()}}
	}
	if _, err := eng.Start(mctx, engine.StartRequest{Definition: c.def}); err != nil {
		return []StepFailure{{Employee: hire.Email, Module: "engine", Error: err.Error()}}
	}

	var failures []StepFailure
	// Bounded by the module count so a step that reports success without
	// producing its artifact cannot spin the loop forever.
	for pass := 0; pass <= len(c.def.Modules); pass++ {
		claim, err := eng.Claim(mctx, engine.ClaimRequest{})
		if err != nil {
			failures = append(failures, StepFailure{Employee: hire.Email, Module: "engine", Error: err.Error()})
			break
		}
		if len(claim.Claims) == 0 {
			break
		}
		updates := make([]engine.ModuleStatusUpdate, 0, len(claim.Claims))
		for _, work := range claim.Claims {
			result, runErr := c.runModule(mctx, work)
			if runErr != nil || result.Status == module.StatusFailed {
				detail := result.Message
				if runErr != nil {
					detail = runErr.Error()
				}
				failures = append(failures, StepFailure{Employee: hire.Email, Module: work.ID, Error: detail})
				c.logf(logbook.LevelError, "%s: step %s failed: %s", hire.Email, work.ID, detail)
			}
			updates = append(updates, engine.ModuleStatusUpdate{
				ID:         work.ID,
				Result:     result,
				Err:        runErr,
				FinishedAt: c.now(),
			})
		}
		state, err := eng.Update(mctx, engine.UpdateRequest{Results: updates})
		if err != nil {
			failures = append(failures, StepFailure{Employee: hire.Email, Module: "engine", Error: err.Error()})
			break
		}
		if state.Status != engine.EngineStatusRunning {
			break
		}
	}

	if run.Onboarded() {
		if err := run.WriteMarker(workflow.MarkerComplete); err == nil {
			c.logf(logbook.LevelInfo, "%s: onboarding complete", hire.Email)
		}
	}
	return failures
}

func (c *Coordinator) runModule(mctx *module.ModuleContext, work engine.WorkClaim) (module.Result, error) {
	mod, err := c.registry.Resolve(work.ModuleID, nil)
	if err != nil {
		return module.Result{Status: module.StatusFailed, Message: err.Error()}, err
	}
	return mod.Run(mctx)
}

func (c *Coordinator) logf(level logbook.Level, format string, args ...any) {
	if c.lb == nil {
		return
	}
	switch level {
	case logbook.LevelError:
		c.lb.Error(format, args...)
	case logbook.LevelWarn:
		c.lb.Warn(format, args...)
	default:
		c.lb.Info(format, args...)
	}
}
