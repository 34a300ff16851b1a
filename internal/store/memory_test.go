package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/barra2-point/internal/reanalysis"
)

func TestEmptyStore(t *testing.T) {
	s := NewMemoryStore(3)

	_, err := s.GetLatest()
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.List()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetentionAndOrder(t *testing.T) {
	s := NewMemoryStore(2)
	for _, id := range []string{"r1", "r2", "r3"} {
		s.SaveRun(reanalysis.RunSummary{ID: id})
	}

	latest, err := s.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID)

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}

func TestUnlimitedHistory(t *testing.T) {
	s := NewMemoryStore(0)
	for range 50 {
		s.SaveRun(reanalysis.RunSummary{})
	}
	runs, err := s.List()
	require.NoError(t, err)
	assert.Len(t, runs, 50)
}

func TestSaveRunCopiesVariables(t *testing.T) {
	s := NewMemoryStore(1)
	vars := []string{"ua50m"}
	s.SaveRun(reanalysis.RunSummary{ID: "r1", Variables: vars})
	vars[0] = "changed"

	latest, err := s.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, []string{"ua50m"}, latest.Variables)
}
