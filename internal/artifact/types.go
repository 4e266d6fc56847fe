// Package artifact defines the filesystem-level contracts (inputs/outputs)
// that onboarding modules exchange. Each artifact has a stable identifier,
// kind, and a resolver that maps to the actual path within the run directory.

package artifact

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/onboardia/onboardia/internal/workflow"
)

// Kind captures the storage shape and serialization format for an artifact.
type Kind string

const (
	// KindDocument represents a markdown-like text document with YAML frontmatter.
	KindDocument Kind = "document"
	// KindJSON represents a JSON document enriched with an _onboardia metadata block.
	KindJSON Kind = "json"
	// KindMarker represents an empty file used as a marker/flag.
	KindMarker Kind = "marker"
	// KindDirectory represents a directory that must exist.
	KindDirectory Kind = "directory"
)

// PathResolver returns the fully-qualified path to an artifact for the
// current onboarding run.
type PathResolver func(*workflow.Run) string

// ArtifactRef declares a stable identifier and metadata for an artifact.
type ArtifactRef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Optional    bool
	path        PathResolver
}

// Path resolves the artifact path for the provided run instance.
func (r ArtifactRef) Path(run *workflow.Run) string {
	if run == nil || r.path == nil {
		return ""
	}
	return filepath.Clean(r.path(run))
}

// Validate ensures the reference is well-formed.
func (r ArtifactRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.Kind == "" {
		return fmt.Errorf("artifact: kind is required for %s", r.ID)
	}
	if r.path == nil {
		return fmt.Errorf("artifact: path resolver missing for %s", r.ID)
	}
	return nil
}

// Metadata captures provenance stored inside artifact frontmatter or metadata blocks.
type Metadata struct {
	ArtifactID string
	ModuleID   string
	Version    string
	Run        string
	Inputs     []string
	CreatedAt  time.Time
	Checksum   string
	Notes      map[string]string
}

// WithDefaults ensures metadata carries the artifact ID and timestamps.
func (m Metadata) WithDefaults(ref ArtifactRef, now time.Time) Metadata {
	clone := m
	if clone.ArtifactID == "" {
		clone.ArtifactID = ref.ID
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now.UTC()
	} else {
		clone.CreatedAt = clone.CreatedAt.UTC()
	}
	return clone
}

// ValidateFor ensures metadata matches the artifact contract.
func (m Metadata) ValidateFor(ref ArtifactRef) error {
	if m.ArtifactID != ref.ID {
		return fmt.Errorf("artifact: metadata id %s does not match ref %s", m.ArtifactID, ref.ID)
	}
	if m.ModuleID == "" {
		return fmt.Errorf("artifact: module id is required for %s", ref.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("artifact: version is required for %s", ref.ID)
	}
	return nil
}

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures ArtifactStore.Check results.
type CheckResult struct {
	Ref      ArtifactRef
	Path     string
	State    State
	Metadata *Metadata
	Err      error
}

// helper to register global references
func register(ref ArtifactRef) ArtifactRef {
	if refs == nil {
		refs = map[string]ArtifactRef{}
	}
	refs[ref.ID] = ref
	return ref
}

var refs map[string]ArtifactRef

// Lookup returns a registered artifact reference by ID.
func Lookup(id string) (ArtifactRef, bool) {
	ref, ok := refs[id]
	return ref, ok
}

// newDocRef creates a markdown document reference helper.
func newDocRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindDocument,
		path:        resolver,
	}
}

// newJSONRef creates a JSON artifact reference helper.
func newJSONRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindJSON,
		path:        resolver,
	}
}

// newMarkerRef creates a marker file reference helper.
func newMarkerRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindMarker,
		path:        resolver,
	}
}

// CustomDocRef registers a document artifact produced by a plugin step. The
// document lands under docs/ in the run directory, keyed by the artifact ID.
func CustomDocRef(id, name, desc string) ArtifactRef {
	if existing, ok := Lookup(id); ok {
		return existing
	}
	return register(newDocRef(id, name, desc, func(run *workflow.Run) string {
		return filepath.Join(run.Dir(), "docs", id+".md")
	}))
}

// Canonical artifact references for the new-joiner onboarding pipeline.
var (
	WelcomeEmailDoc = register(newDocRef("welcome-email-doc", "Welcome Email Draft", "Generated HTML welcome email for the hire", func(run *workflow.Run) string { return run.WelcomeEmailPath() }))

	EmailSentMarker = register(newMarkerRef("email-sent", "Email Sent Marker", "Marker written after Gmail accepts the welcome email", func(run *workflow.Run) string { return run.EmailSentMarkerPath() }))

	AsanaInvitedMarker = register(newMarkerRef("asana-invited", "Asana Invited Marker", "Marker written after the hire joins the workspace", func(run *workflow.Run) string { return run.AsanaInvitedMarkerPath() }))
	AsanaTaskJSON      = register(newJSONRef("asana-task", "Asana Task Record", "Created onboarding task with its gid and permalink", func(run *workflow.Run) string { return run.AsanaTaskPath() }))

	MentorJSON = register(newJSONRef("mentor", "Mentor Match Record", "Selected mentor with tenure and location details", func(run *workflow.Run) string { return run.MentorPath() }))

	IntroCallJSON = register(newJSONRef("intro-call", "Intro Call Record", "Scheduled calendar event with its Meet link", func(run *workflow.Run) string { return run.IntroCallPath() }))

	OnboardedMarker = register(newMarkerRef("onboarded", "Onboarding Complete Marker", "Marker written once every pipeline step has finished", func(run *workflow.Run) string { return run.CompleteMarkerPath() }))
)
