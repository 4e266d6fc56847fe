package roster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignEnforcesCapacity(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "roster.json"), 2)
	require.NoError(t, err)

	require.NoError(t, r.Assign("mentor@example.com", "Mentor", "a@example.com"))
	require.NoError(t, r.Assign("mentor@example.com", "Mentor", "b@example.com"))
	assert.False(t, r.HasCapacity("mentor@example.com"))

	err = r.Assign("mentor@example.com", "Mentor", "c@example.com")
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestAssignIsIdempotentPerPair(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "roster.json"), 1)
	require.NoError(t, err)

	require.NoError(t, r.Assign("mentor@example.com", "Mentor", "a@example.com"))
	require.NoError(t, r.Assign("mentor@example.com", "Mentor", "a@example.com"))
	assert.Equal(t, 1, r.LoadOf("mentor@example.com"))
}

func TestRosterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")

	r, err := Load(path, 3)
	require.NoError(t, err)
	require.NoError(t, r.Assign("Mentor@Example.com", "Mentor", "a@example.com"))
	require.NoError(t, r.Save())

	reloaded, err := Load(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.LoadOf("mentor@example.com"))

	mentor, ok := reloaded.MentorOf("a@example.com")
	require.True(t, ok)
	assert.Equal(t, "mentor@example.com", mentor)
}

func TestPickPreservesPreferenceOrder(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "roster.json"), 1)
	require.NoError(t, err)
	require.NoError(t, r.Assign("first@example.com", "First", "a@example.com"))

	picked, err := r.Pick([]string{"first@example.com", "second@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", picked)

	require.NoError(t, r.Assign("second@example.com", "Second", "b@example.com"))
	_, err = r.Pick([]string{"first@example.com", "second@example.com"})
	assert.ErrorIs(t, err, ErrAtCapacity)
}
