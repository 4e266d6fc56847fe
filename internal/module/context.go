package module

import (
	"context"
	"time"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/asana"
	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/llm"
	"github.com/onboardia/onboardia/internal/logbook"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
	"github.com/onboardia/onboardia/internal/workflow"
)

// EmailSender delivers HTML mail from the onboarding account.
type EmailSender interface {
	SendHTML(ctx context.Context, to, subject, htmlBody string) (*googleapi.SentMessage, error)
}

// EventScheduler creates calendar events on the primary calendar.
type EventScheduler interface {
	Insert(ctx context.Context, event googleapi.Event) (*googleapi.Event, error)
}

// TaskService covers the Asana operations the pipeline performs.
type TaskService interface {
	InviteUser(ctx context.Context, email string) (*asana.User, error)
	CreateTask(ctx context.Context, name, assigneeEmail string) (*asana.Task, error)
}

// ModuleContext carries shared runtime dependencies into every module. One
// context serves one hire's run.
type ModuleContext struct {
	Ctx      context.Context
	Config   *config.Config
	Run      *workflow.Run
	Employee *store.Employee

	LLM       llm.Client
	Mail      EmailSender
	Calendar  EventScheduler
	Tasks     TaskService
	Directory *store.Store
	Roster    *roster.Roster

	Logbook    *logbook.Logbook
	Artifacts  *artifact.Store
	OriginMode string

	// Now is the clock modules use for scheduling decisions. Tests pin it.
	Now func() time.Time
}

// NewContext builds a ModuleContext with a fresh ArtifactStore for the run.
func NewContext(cfg *config.Config, run *workflow.Run, emp *store.Employee, lb *logbook.Logbook) *ModuleContext {
	return &ModuleContext{
		Ctx:       context.Background(),
		Config:    cfg,
		Run:       run,
		Employee:  emp,
		Logbook:   lb,
		Artifacts: artifact.NewStore(run),
		Now:       time.Now,
	}
}

// WithClients attaches the external service clients.
func (ctx *ModuleContext) WithClients(chat llm.Client, mail EmailSender, cal EventScheduler, tasks TaskService) *ModuleContext {
	clone := *ctx
	clone.LLM = chat
	clone.Mail = mail
	clone.Calendar = cal
	clone.Tasks = tasks
	return &clone
}

// WithDirectory attaches the employee store and mentor roster.
func (ctx *ModuleContext) WithDirectory(dir *store.Store, r *roster.Roster) *ModuleContext {
	clone := *ctx
	clone.Directory = dir
	clone.Roster = r
	return &clone
}

// WithArtifacts allows dependency injection of a pre-built store.
func (ctx *ModuleContext) WithArtifacts(store *artifact.Store) *ModuleContext {
	clone := *ctx
	clone.Artifacts = store
	return &clone
}

// WithMode records which Bubble Tea mode triggered the invocation.
func (ctx *ModuleContext) WithMode(name string) *ModuleContext {
	clone := *ctx
	clone.OriginMode = name
	return &clone
}

// WithContext sets the cancellation context for blocking calls.
func (ctx *ModuleContext) WithContext(c context.Context) *ModuleContext {
	clone := *ctx
	clone.Ctx = c
	return &clone
}
