// internal/workflow/run.go
//
// Defines the per-hire run directory structure and file constants.
// All run state is stored in .onboardia/runs/<run-id>/ so a resumed run can
// pick up where the previous one stopped.

package workflow

import (
	"os"
	"path/filepath"
	"strings"
)

// File names for run artifacts (inside .onboardia/runs/<run-id>/)
const (
	FileWelcomeEmail = "welcome-email.md"
	FileAsanaTask    = "asana-task.json"
	FileMentor       = "mentor.json"
	FileIntroCall    = "intro-call.json"
	FileSummary      = "summary.json"
)

// Marker files (empty files that signal step completion)
const (
	MarkerEmailSent    = ".email-sent"
	MarkerAsanaInvited = ".asana-invited"
	MarkerComplete     = ".onboarding-complete"
)

// Stage identifies how far a hire's onboarding pipeline has progressed,
// derived from the artifacts present on disk.
type Stage string

const (
	StageWelcomeEmail Stage = "welcome-email"
	StageSendEmail    Stage = "send-email"
	StageAsanaAccess  Stage = "asana-access"
	StageMentorMatch  Stage = "mentor-match"
	StageIntroCall    Stage = "intro-call"
	StageComplete     Stage = "complete"
)

// Run manages the on-disk state for one hire's onboarding pipeline.
type Run struct {
	// runsDir is .onboardia/runs
	runsDir string
	// id is the run identifier, derived from the hire's email address
	id string
}

// NewRun creates a run manager rooted at the runs directory.
func NewRun(runsDir, id string) *Run {
	return &Run{runsDir: runsDir, id: id}
}

// RunIDForEmail derives a filesystem-safe run identifier from an email
// address. "priya@example.com" becomes "priya-example-com".
func RunIDForEmail(email string) string {
	lowered := strings.ToLower(strings.TrimSpace(email))
	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Dir returns the base directory for this run
func (r *Run) Dir() string {
	return filepath.Join(r.runsDir, r.id)
}

// WelcomeEmailPath returns the path to the generated welcome email draft
func (r *Run) WelcomeEmailPath() string {
	return filepath.Join(r.Dir(), FileWelcomeEmail)
}

// EmailSentMarkerPath returns the marker path written after Gmail accepts
// the welcome email
func (r *Run) EmailSentMarkerPath() string {
	return filepath.Join(r.Dir(), MarkerEmailSent)
}

// AsanaInvitedMarkerPath returns the marker path written after the hire is
// added to the workspace
func (r *Run) AsanaInvitedMarkerPath() string {
	return filepath.Join(r.Dir(), MarkerAsanaInvited)
}

// AsanaTaskPath returns the path to the created task record
func (r *Run) AsanaTaskPath() string {
	return filepath.Join(r.Dir(), FileAsanaTask)
}

// MentorPath returns the path to the mentor match record
func (r *Run) MentorPath() string {
	return filepath.Join(r.Dir(), FileMentor)
}

// IntroCallPath returns the path to the scheduled intro call record
func (r *Run) IntroCallPath() string {
	return filepath.Join(r.Dir(), FileIntroCall)
}

// CompleteMarkerPath returns the marker path for a fully onboarded hire
func (r *Run) CompleteMarkerPath() string {
	return filepath.Join(r.Dir(), MarkerComplete)
}

// CurrentStage reports the first pipeline step whose output is missing.
func (r *Run) CurrentStage() Stage {
	switch {
	case !fileExistsAt(r.WelcomeEmailPath()):
		return StageWelcomeEmail
	case !fileExistsAt(r.EmailSentMarkerPath()):
		return StageSendEmail
	case !fileExistsAt(r.AsanaTaskPath()):
		return StageAsanaAccess
	case !fileExistsAt(r.MentorPath()):
		return StageMentorMatch
	case !fileExistsAt(r.IntroCallPath()):
		return StageIntroCall
	default:
		return StageComplete
	}
}

// Onboarded reports whether every pipeline output exists.
func (r *Run) Onboarded() bool {
	return r.CurrentStage() == StageComplete
}

// Initialize creates the run directory
func (r *Run) Initialize() error {
	return os.MkdirAll(r.Dir(), 0755)
}

// WriteMarker creates an empty marker file inside the run directory
func (r *Run) WriteMarker(marker string) error {
	return os.WriteFile(filepath.Join(r.Dir(), marker), []byte{}, 0644)
}

// HasMarker checks if a marker file exists inside the run directory
func (r *Run) HasMarker(marker string) bool {
	return fileExistsAt(filepath.Join(r.Dir(), marker))
}

// Reset removes the run directory (for starting a hire over)
func (r *Run) Reset() error {
	return os.RemoveAll(r.Dir())
}

func fileExistsAt(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
