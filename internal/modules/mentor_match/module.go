// Package mentor_match pairs the hire with a senior mentor. Seniors in the
// hire's location are preferred, longest tenure first, with a fallback to
// any senior. The shared roster enforces per-mentor mentee capacity.
package mentor_match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/runtime"
	"github.com/onboardia/onboardia/internal/roster"
	"github.com/onboardia/onboardia/internal/store"
)

const (
	moduleID      = "mentor-match"
	moduleVersion = "1.0.0"
)

// Match is the mentor record persisted to the run directory.
type Match struct {
	EmployeeID   int64  `json:"employee_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Location     string `json:"location"`
	DateJoined   string `json:"date_joined"`
	TenureDays   int    `json:"tenure_days"`
	SameLocation bool   `json:"same_location"`
}

// MentorMatchModule selects and records the hire's mentor.
type MentorMatchModule struct {
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
func New() *MentorMatchModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Mentor Match",
		Description: "Selects a senior mentor for the hire based on location and tenure.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetOutputs(artifact.MentorJSON)
	return &MentorMatchModule{Base: &base}
}

// Run selects the mentor and persists the match.
func (m *MentorMatchModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if ctx.Directory == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: employee store is required", moduleID)
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "mentor already matched"}, nil
	}

	mentor, sameLocation, err := m.selectMentor(ctx)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}

	if ctx.Roster != nil {
		if err := ctx.Roster.Assign(mentor.Email, mentor.Name, ctx.Employee.Email); err != nil {
			return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: assign %s: %w", moduleID, mentor.Email, err)
		}
		if err := ctx.Roster.Save(); err != nil {
			return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: save roster: %w", moduleID, err)
		}
	}

	match := Match{
		EmployeeID:   mentor.ID,
		Name:         mentor.Name,
		Email:        mentor.Email,
		Location:     mentor.Location,
		DateJoined:   mentor.DateJoined.Format("2006-01-02"),
		TenureDays:   int(mentor.Tenure(ctx.Now()) / (24 * time.Hour)),
		SameLocation: sameLocation,
	}
	body, err := json.Marshal(match)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: encode match: %w", moduleID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: artifact.MentorJSON.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Run:        ctx.Run.ID(),
	}
	if err := ctx.Artifacts.Write(artifact.MentorJSON, body, meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write match: %w", moduleID, err)
	}
	if ctx.Logbook != nil {
		ctx.Logbook.Info("%s: matched %s with mentor %s", moduleID, ctx.Employee.Email, mentor.Email)
	}
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("mentor %s matched for %s", mentor.Name, ctx.Employee.Email)}, nil
}

// selectMentor walks the candidate lists in preference order, skipping
// mentors the roster reports as fully booked.
func (m *MentorMatchModule) selectMentor(ctx *module.ModuleContext) (store.Employee, bool, error) {
	hire := *ctx.Employee

	local, err := ctx.Directory.MentorCandidates(ctx.Ctx, hire.Email, hire.Role, hire.Location)
	if err != nil {
		return store.Employee{}, false, fmt.Errorf("%s: query local candidates: %w", moduleID, err)
	}
	if mentor, ok := m.firstAvailable(ctx, local); ok {
		return mentor, true, nil
	}

	anywhere, err := ctx.Directory.MentorCandidates(ctx.Ctx, hire.Email, hire.Role, "")
	if err != nil {
		return store.Employee{}, false, fmt.Errorf("%s: query fallback candidates: %w", moduleID, err)
	}
	if mentor, ok := m.firstAvailable(ctx, anywhere); ok {
		return mentor, mentor.Location == hire.Location, nil
	}

	if len(anywhere) == 0 {
		return store.Employee{}, false, fmt.Errorf("%s: no senior mentor available for %s: %w", moduleID, hire.Email, store.ErrNoMentor)
	}
	return store.Employee{}, false, fmt.Errorf("%s: no mentor with spare capacity for %s: %w", moduleID, hire.Email, roster.ErrAtCapacity)
}

// firstAvailable asks the roster to pick from the candidates in the query's
// tenure order. Without a roster the first candidate wins.
func (m *MentorMatchModule) firstAvailable(ctx *module.ModuleContext, candidates []store.Employee) (store.Employee, bool) {
	if len(candidates) == 0 {
		return store.Employee{}, false
	}
	if ctx.Roster == nil {
		return candidates[0], true
	}
	emails := make([]string, len(candidates))
	for i, c := range candidates {
		emails[i] = c.Email
	}
	picked, err := ctx.Roster.Pick(emails)
	if err != nil {
		return store.Employee{}, false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Email, picked) {
			return c, true
		}
	}
	return store.Employee{}, false
}

// IsComplete checks the mentor record exists with this module's metadata.
func (m *MentorMatchModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	return runtime.EnsureJSON(ctx, moduleID, moduleVersion, artifact.MentorJSON)
}

// ReadMatch loads a previously persisted mentor match from the run.
func ReadMatch(ctx *module.ModuleContext) (Match, error) {
	var match Match
	if err := ctx.Artifacts.ReadJSON(artifact.MentorJSON, &match); err != nil {
		return Match{}, fmt.Errorf("%s: read match: %w", moduleID, err)
	}
	if match.Email == "" {
		return Match{}, errors.New(moduleID + ": match record is incomplete")
	}
	return match, nil
}
