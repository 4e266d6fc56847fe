// Package intro_call schedules the mentor intro meeting: next week on the
// same weekday, 10:00 to 11:00 in the configured timezone, with a Meet link
// and popup reminders.
package intro_call

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/googleapi"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/mentor_match"
	"github.com/onboardia/onboardia/internal/modules/runtime"
)

const (
	moduleID      = "intro-call"
	moduleVersion = "1.0.0"
)

// Record is the scheduled event summary persisted to the run directory.
type Record struct {
	EventID     string `json:"event_id"`
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	MeetLink    string `json:"meet_link,omitempty"`
	HTMLLink    string `json:"html_link,omitempty"`
	MentorEmail string `json:"mentor_email"`
}

// IntroCallModule creates the calendar event for hire and mentor.
type IntroCallModule struct {
	*module.Base
}

// Register installs the module factory into the provided registry.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(module.Config) (module.Module, error) {
		return New(), nil
	})
}

// New constructs the module with its IO contracts declared.
func New() *IntroCallModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Schedule Intro Call",
		Description: "Books the mentor intro call with a Meet link and reminders.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetInputs(artifact.MentorJSON, artifact.EmailSentMarker)
	base.SetOutputs(artifact.IntroCallJSON)
	return &IntroCallModule{Base: &base}
}

// Run books the event and persists its record.
func (m *IntroCallModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if ctx.Calendar == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: calendar client is required", moduleID)
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "intro call already scheduled"}, nil
	}

	mentorReady, err := runtime.EnsureJSON(ctx, "mentor-match", moduleVersion, artifact.MentorJSON)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if !mentorReady {
		return module.Result{Status: module.StatusNeedsInput, Message: "mentor match is not ready"}, nil
	}
	mentor, err := mentor_match.ReadMatch(ctx)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}

	loc, err := time.LoadLocation(ctx.Config.Project.Google.Timezone)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: load timezone: %w", moduleID, err)
	}
	start, end := googleapi.IntroCallWindow(ctx.Now(), loc)

	hire := *ctx.Employee
	event := googleapi.Event{
		Summary:  fmt.Sprintf("Intro chat: %s x %s (%s)", hire.Name, mentor.Name, hire.Department),
		Location: "Google Meet",
		Description: fmt.Sprintf(
			"Welcome %s.\nMentor: %s (%s).\nAgenda: Meet the team, tooling overview, first week goals.\nManager: %s.\n",
			hire.Name, mentor.Name, mentor.Email, managerOrNA(hire.ManagerEmail),
		),
		Start: googleapi.EventTime{DateTime: start.Format("2006-01-02T15:04:05"), TimeZone: loc.String()},
		End:   googleapi.EventTime{DateTime: end.Format("2006-01-02T15:04:05"), TimeZone: loc.String()},
		Attendees: []googleapi.Attendee{
			{Email: hire.Email},
			{Email: mentor.Email},
		},
		Reminders: &googleapi.Reminders{
			UseDefault: false,
			Overrides: []googleapi.ReminderOverride{
				{Method: "popup", Minutes: 10},
				{Method: "popup", Minutes: 30},
			},
		},
		ConferenceData: &googleapi.ConferenceData{
			CreateRequest: &googleapi.ConferenceCreateRequest{
				RequestID:             googleapi.IntroCallRequestID(hire.ID, start),
				ConferenceSolutionKey: googleapi.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := ctx.Calendar.Insert(ctx.Ctx, event)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: schedule call for %s: %w", moduleID, hire.Email, err)
	}

	record := Record{
		EventID:     created.ID,
		Summary:     created.Summary,
		Start:       created.Start.DateTime,
		End:         created.End.DateTime,
		MeetLink:    created.HangoutLink,
		HTMLLink:    created.HTMLLink,
		MentorEmail: mentor.Email,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: encode record: %w", moduleID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: artifact.IntroCallJSON.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Run:        ctx.Run.ID(),
		Inputs:     []string{artifact.MentorJSON.ID, artifact.EmailSentMarker.ID},
	}
	if err := ctx.Artifacts.Write(artifact.IntroCallJSON, body, meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write record: %w", moduleID, err)
	}
	if ctx.Logbook != nil {
		ctx.Logbook.Info("%s: scheduled intro call %s for %s", moduleID, created.ID, hire.Email)
	}
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("intro call scheduled for %s", hire.Email)}, nil
}

func managerOrNA(email string) string {
	if email == "" {
		return "N/A"
	}
	return email
}

// IsComplete checks the event record exists with this module's metadata.
func (m *IntroCallModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	return runtime.EnsureJSON(ctx, moduleID, moduleVersion, artifact.IntroCallJSON)
}
