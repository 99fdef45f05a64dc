package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCutoffMillisPlainDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	cutoff := CutoffMillis(now, 4, time.UTC)

	want := time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)
	require.Equal(t, want.UnixMilli(), cutoff)
}

func TestCutoffMillisAcrossFallBack(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Nov 2 2025 is the fall-back transition; a 4-day window ending Nov 5
	// spans it, so the cutoff sits 97 real hours in the past, not 96.
	now := time.Date(2025, 11, 5, 12, 0, 0, 0, loc)
	cutoff := CutoffMillis(now, 4, loc)

	want := time.Date(2025, 11, 1, 12, 0, 0, 0, loc)
	require.Equal(t, want.UnixMilli(), cutoff)
	require.Equal(t, 97*time.Hour, now.Sub(time.UnixMilli(cutoff)))
}

func TestCutoffMillisNormalizesZone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// The same instant yields the same cutoff regardless of the zone the
	// caller's clock reports in.
	instant := time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC)
	require.Equal(t,
		CutoffMillis(instant, 4, loc),
		CutoffMillis(instant.In(loc), 4, loc))
}
