package artifact

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/onboardia/onboardia/internal/workflow"
)

func newTestRun(t *testing.T) *workflow.Run {
	t.Helper()
	run := workflow.NewRun(t.TempDir(), "priya-example-com")
	if err := run.Initialize(); err != nil {
		t.Fatalf("initialize run: %v", err)
	}
	return run
}

func TestStoreDocumentRoundTrip(t *testing.T) {
	run := newTestRun(t)
	fixed := time.Unix(1730000000, 0).UTC()
	store := NewStore(run, WithClock(func() time.Time { return fixed }))

	result, err := store.Check(WelcomeEmailDoc)
	if err != nil {
		t.Fatalf("check missing artifact: %v", err)
	}
	if result.State != StateMissing {
		t.Fatalf("expected missing before write, got %s", result.State)
	}

	body := []byte("<html><body>Welcome to the team, Priya Nair!</body></html>")
	meta := Metadata{
		ArtifactID: WelcomeEmailDoc.ID,
		ModuleID:   "welcome-email",
		Version:    "1.0.0",
		Run:        run.ID(),
	}
	if err := store.Write(WelcomeEmailDoc, body, meta); err != nil {
		t.Fatalf("write document: %v", err)
	}

	got, gotMeta, err := store.ReadDocument(WelcomeEmailDoc)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("body mismatch: %q", got)
	}
	if gotMeta == nil || gotMeta.ModuleID != "welcome-email" {
		t.Fatalf("metadata not preserved: %+v", gotMeta)
	}
	if !gotMeta.CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock timestamp, got %s", gotMeta.CreatedAt)
	}

	result, err = store.Check(WelcomeEmailDoc)
	if err != nil {
		t.Fatalf("check ready artifact: %v", err)
	}
	if result.State != StateReady {
		t.Fatalf("expected ready after write, got %s", result.State)
	}
}

func TestStoreJSONRoundTrip(t *testing.T) {
	run := newTestRun(t)
	store := NewStore(run)

	type mentorRecord struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Location string `json:"location"`
	}
	record := mentorRecord{Name: "Rohan Iyer", Email: "rohan@example.com", Location: "Bengaluru"}
	body, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	meta := Metadata{
		ArtifactID: MentorJSON.ID,
		ModuleID:   "mentor-match",
		Version:    "1.0.0",
		Run:        run.ID(),
	}
	if err := store.Write(MentorJSON, body, meta); err != nil {
		t.Fatalf("write json artifact: %v", err)
	}

	var out mentorRecord
	if err := store.ReadJSON(MentorJSON, &out); err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	if out.Email != record.Email || out.Location != record.Location {
		t.Fatalf("record mismatch: %+v", out)
	}

	result, err := store.Check(MentorJSON)
	if err != nil {
		t.Fatalf("check json artifact: %v", err)
	}
	if result.State != StateReady || result.Metadata == nil {
		t.Fatalf("expected ready with metadata, got %+v", result)
	}
	if result.Metadata.ModuleID != "mentor-match" {
		t.Fatalf("unexpected metadata: %+v", result.Metadata)
	}
}

func TestStoreMarker(t *testing.T) {
	run := newTestRun(t)
	store := NewStore(run)

	if err := store.Write(EmailSentMarker, nil, Metadata{}); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	result, err := store.Check(EmailSentMarker)
	if err != nil {
		t.Fatalf("check marker: %v", err)
	}
	if result.State != StateReady {
		t.Fatalf("expected ready marker, got %s", result.State)
	}
}

func TestStoreRejectsMismatchedMetadata(t *testing.T) {
	run := newTestRun(t)
	store := NewStore(run)
	meta := Metadata{
		ArtifactID: "some-other-artifact",
		ModuleID:   "welcome-email",
		Version:    "1.0.0",
	}
	if err := store.Write(WelcomeEmailDoc, []byte("body"), meta); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestParseFrontMatterRoundTrip(t *testing.T) {
	meta := Metadata{
		ArtifactID: "welcome-email-doc",
		ModuleID:   "welcome-email",
		Version:    "1.2.0",
		Run:        "priya-example-com",
		Inputs:     []string{"mentor"},
		CreatedAt:  time.Unix(1730000000, 0).UTC(),
		Notes:      map[string]string{"model": "gemini-2.0-flash"},
	}
	content, err := WriteFrontMatter(meta, []byte("Hello Priya\n"))
	if err != nil {
		t.Fatalf("write front matter: %v", err)
	}
	parsed, body, err := ParseFrontMatter(content)
	if err != nil {
		t.Fatalf("parse front matter: %v", err)
	}
	if string(body) != "Hello Priya\n" {
		t.Fatalf("body mismatch: %q", body)
	}
	if parsed.Version != "1.2.0" || parsed.Notes["model"] != "gemini-2.0-flash" {
		t.Fatalf("metadata mismatch: %+v", parsed)
	}
	if len(parsed.Inputs) != 1 || parsed.Inputs[0] != "mentor" {
		t.Fatalf("inputs mismatch: %+v", parsed.Inputs)
	}
}
