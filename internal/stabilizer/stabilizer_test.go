package stabilizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		prev    State
		instant string
		confirm int
		want    State
	}{
		{"first sighting", State{}, "Error", 2, State{Candidate: "Error", Hits: 1}},
		{"second sighting promotes", State{Candidate: "Error", Hits: 1}, "error", 2, State{Stable: "Error"}},
		{"empty clears candidate", State{Stable: "A", Candidate: "B", Hits: 1}, "", 2, State{Stable: "A"}},
		{"matches stable", State{Stable: "A", Candidate: "B", Hits: 1}, "a", 2, State{Stable: "A"}},
		{"new candidate resets", State{Stable: "A", Candidate: "B", Hits: 2}, "C", 5, State{Stable: "A", Candidate: "C", Hits: 1}},
		{"confirm floors at one", State{Stable: "A"}, "B", 0, State{Stable: "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.prev, tt.instant, tt.confirm))
		})
	}
}

func TestUpdateConfirmsAfterHits(t *testing.T) {
	dir := t.TempDir()
	s := New()

	for _, confirm := range []int{1, 2, 3, 5} {
		serial := "cam" + string(rune('0'+confirm))
		for i := 1; i <= confirm; i++ {
			got := s.Update(dir, serial, "LowBattery", confirm)
			if i < confirm {
				assert.Empty(t, got.Stable, "confirm=%d call=%d", confirm, i)
				assert.Equal(t, i, got.Hits)
			} else {
				assert.Equal(t, "LowBattery", got.Stable, "confirm=%d call=%d", confirm, i)
				assert.Zero(t, got.Hits)
			}
		}
	}
}

func TestUpdateEmptyResetsWithoutTouchingStable(t *testing.T) {
	dir := t.TempDir()
	s := New()

	s.Update(dir, "A1", "Error", 1)
	s.Update(dir, "A1", "LowBattery", 3)
	got := s.Update(dir, "A1", "", 3)

	assert.Equal(t, State{Stable: "Error"}, got)
}

func TestUpdateIdempotentOnceStable(t *testing.T) {
	dir := t.TempDir()
	s := New()

	s.Update(dir, "A1", "Error", 2)
	want := s.Update(dir, "A1", "Error", 2)
	require.Equal(t, "Error", want.Stable)

	for i := 0; i < 5; i++ {
		assert.Equal(t, want, s.Update(dir, "A1", "Error", 2))
	}
}

func TestUpdatePersistsPerSerial(t *testing.T) {
	dir := t.TempDir()
	s := New()

	s.Update(dir, " 2245 ", "Error", 2)
	s.Update(dir, "", "LowBattery", 2)

	data, err := os.ReadFile(filepath.Join(dir, "state_cache_2245.txt"))
	require.NoError(t, err)
	assert.Equal(t, "stable=\ncandidate=Error\nhits=1\n", string(data))

	assert.Equal(t, State{Candidate: "LowBattery", Hits: 1}, Load(Path(dir, "")))
	assert.Equal(t, filepath.Join(dir, "state_cache_noserial.txt"), Path(dir, "  "))
}

func TestLoadTolerant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.txt")

	assert.Equal(t, State{}, Load(path))

	content := "garbage\n=x\nSTABLE = UsbMassStorage \nhits=abc\ncandidate=Error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	assert.Equal(t, State{Stable: "UsbMassStorage", Candidate: "Error"}, Load(path))
}

func TestUpdateSurvivesUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	got := New().Update(blocker, "X", "Error", 1)
	assert.Equal(t, State{Stable: "Error"}, got)
}
