// Package roster tracks mentor assignments across onboarding runs. Each
// mentor has a capacity of concurrent mentees; the roster persists as JSON
// under the state directory so repeated runs never overload one senior.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrAtCapacity is returned when every candidate mentor is fully booked.
var ErrAtCapacity = errors.New("roster: all mentors at capacity")

// MentorEntry records one mentor's current load in roster.json.
type MentorEntry struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Mentees  []string `json:"mentees,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
}

// Normalize ensures essential fields are present.
func (m MentorEntry) Normalize() (MentorEntry, error) {
	email := strings.ToLower(strings.TrimSpace(m.Email))
	if email == "" {
		return MentorEntry{}, errors.New("mentor entry missing email")
	}
	m.Email = email
	m.Name = strings.TrimSpace(m.Name)
	return m, nil
}

// Roster is the on-disk mentor ledger. It is safe for concurrent use, so
// onboarding workers can assign mentors in parallel.
type Roster struct {
	mu              sync.Mutex
	path            string
	defaultCapacity int
	entries         map[string]*MentorEntry
}

// Load reads the roster from path, starting empty when the file is missing.
// defaultCapacity applies to mentors without an explicit capacity.
func Load(path string, defaultCapacity int) (*Roster, error) {
	r := &Roster{
		path:            path,
		defaultCapacity: defaultCapacity,
		entries:         make(map[string]*MentorEntry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}

	var entries []MentorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("roster: parse %s: %w", path, err)
	}
	for _, e := range entries {
		normalized, err := e.Normalize()
		if err != nil {
			return nil, fmt.Errorf("roster: %s: %w", path, err)
		}
		entry := normalized
		r.entries[entry.Email] = &entry
	}
	return r, nil
}

// Save writes the roster to disk, preserving directory structure.
func (r *Roster) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	entries := make([]MentorEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

func (r *Roster) capacityOf(e *MentorEntry) int {
	if e.Capacity > 0 {
		return e.Capacity
	}
	return r.defaultCapacity
}

// LoadOf reports a mentor's current mentee count.
func (r *Roster) LoadOf(mentorEmail string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[strings.ToLower(mentorEmail)]
	if !ok {
		return 0
	}
	return len(e.Mentees)
}

// HasCapacity reports whether the mentor can take another mentee.
func (r *Roster) HasCapacity(mentorEmail string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasCapacity(mentorEmail)
}

func (r *Roster) hasCapacity(mentorEmail string) bool {
	e, ok := r.entries[strings.ToLower(mentorEmail)]
	if !ok {
		return r.defaultCapacity > 0
	}
	return len(e.Mentees) < r.capacityOf(e)
}

// MentorOf returns the mentor already assigned to a hire, if any.
func (r *Roster) MentorOf(menteeEmail string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mentee := strings.ToLower(menteeEmail)
	for _, e := range r.entries {
		for _, m := range e.Mentees {
			if m == mentee {
				return e.Email, true
			}
		}
	}
	return "", false
}

// Assign records a mentee under a mentor, enforcing capacity. Assigning the
// same pair twice is a no-op, so retried runs stay consistent.
func (r *Roster) Assign(mentorEmail, mentorName, menteeEmail string) error {
	mentor := strings.ToLower(strings.TrimSpace(mentorEmail))
	mentee := strings.ToLower(strings.TrimSpace(menteeEmail))
	if mentor == "" || mentee == "" {
		return errors.New("roster: mentor and mentee emails are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[mentor]
	if !ok {
		e = &MentorEntry{Email: mentor, Name: strings.TrimSpace(mentorName)}
		r.entries[mentor] = e
	}
	for _, m := range e.Mentees {
		if m == mentee {
			return nil
		}
	}
	if len(e.Mentees) >= r.capacityOf(e) {
		return fmt.Errorf("%w: %s has %d mentees", ErrAtCapacity, mentor, len(e.Mentees))
	}
	e.Mentees = append(e.Mentees, mentee)
	return nil
}

// Pick chooses the first candidate with spare capacity, preserving the
// caller's preference order.
func (r *Roster) Pick(candidateEmails []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, email := range candidateEmails {
		if r.hasCapacity(email) {
			return strings.ToLower(email), nil
		}
	}
	return "", ErrAtCapacity
}
