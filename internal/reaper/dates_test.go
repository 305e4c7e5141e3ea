package reaper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldDelete(t *testing.T) {
	tests := []struct {
		name         string
		emDate       string
		deletionDate string
		today        string
		want         bool
	}{
		{"due and past notification day", "2025-05-01", "2025-06-01", "2025-06-15", true},
		{"due exactly on deletion date", "2025-05-01", "2025-06-01", "2025-06-01", true},
		{"not yet due", "2025-05-01", "2025-06-01", "2025-05-31", false},
		{"deletion date equals notification day", "2025-06-01", "2025-06-01", "2025-06-01", false},
		{"overdue but today is notification day", "2025-06-15", "2025-06-01", "2025-06-15", false},
		{"malformed deletion date", "2025-05-01", "June 1st", "2025-06-15", false},
		{"empty deletion date", "2025-05-01", "", "2025-06-15", false},
		{"empty notification date never matches today", "", "2025-06-01", "2025-06-15", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldDelete(tt.emDate, tt.deletionDate, tt.today))
		})
	}
}

func TestToday_ValidTimezone(t *testing.T) {
	today, err := Today("UTC")
	require.NoError(t, err)

	parsed, err := time.Parse("2006-01-02", today)
	require.NoError(t, err)
	assert.False(t, parsed.IsZero())
}

func TestToday_InvalidTimezone(t *testing.T) {
	_, err := Today("Mars/Olympus_Mons")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestOnOrAfter(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2025-06-02", "2025-06-01", true},
		{"2025-06-01", "2025-06-01", true},
		{"2025-05-31", "2025-06-01", false},
	}

	for _, tt := range tests {
		got, err := onOrAfter(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, err := onOrAfter("bogus", "2025-06-01")
	assert.Error(t, err)
}
