package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rideDepartingAt(t time.Time, status string) *Ride {
	return &Ride{
		Date:          time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()),
		Direction:     DirectionToCollege,
		ToCollegeTime: t.Format("15:04"),
		Status:        status,
	}
}

func TestResolveStatus_BeforeDeparture(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	ride := rideDepartingAt(now.Add(30*time.Minute), RideStatusScheduled)

	assert.Equal(t, RideStatusScheduled, ResolveStatus(ride, now))
}

func TestResolveStatus_WithinWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ride := rideDepartingAt(now.Add(-30*time.Minute), RideStatusScheduled)

	assert.Equal(t, RideStatusInProgress, ResolveStatus(ride, now))
}

func TestResolveStatus_AtExactDeparture(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	ride := rideDepartingAt(now, RideStatusScheduled)

	assert.Equal(t, RideStatusInProgress, ResolveStatus(ride, now))
}

func TestResolveStatus_AfterWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ride := rideDepartingAt(now.Add(-3*time.Hour), RideStatusScheduled)

	// Skips straight to completed even if no read ever saw in-progress.
	assert.Equal(t, RideStatusCompleted, ResolveStatus(ride, now))

	inProgress := rideDepartingAt(now.Add(-3*time.Hour), RideStatusInProgress)
	assert.Equal(t, RideStatusCompleted, ResolveStatus(inProgress, now))
}

func TestResolveStatus_AtExactWindowEnd(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
	ride := rideDepartingAt(now.Add(-InProgressWindow), RideStatusInProgress)

	assert.Equal(t, RideStatusCompleted, ResolveStatus(ride, now))
}

func TestResolveStatus_TerminalNeverChanges(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cancelled := rideDepartingAt(now.Add(-3*time.Hour), RideStatusCancelled)
	assert.Equal(t, RideStatusCancelled, ResolveStatus(cancelled, now))

	completed := rideDepartingAt(now.Add(-5*time.Hour), RideStatusCompleted)
	assert.Equal(t, RideStatusCompleted, ResolveStatus(completed, now))
}

func TestResolveStatus_DirectionPicksTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	ride := &Ride{
		Date:            time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Direction:       DirectionFromCollege,
		ToCollegeTime:   "08:30",
		FromCollegeTime: "17:30",
		Status:          RideStatusScheduled,
	}

	// 18:00 is 30 minutes after the evening departure, hours after the
	// morning one; only the direction's own time matters.
	assert.Equal(t, RideStatusInProgress, ResolveStatus(ride, now))
}

func TestResolveStatus_BadTimeLeavesStored(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ride := &Ride{
		Date:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Direction:     DirectionToCollege,
		ToCollegeTime: "not-a-time",
		Status:        RideStatusScheduled,
	}

	assert.Equal(t, RideStatusScheduled, ResolveStatus(ride, now))
}

func TestDepartureAt(t *testing.T) {
	ride := &Ride{
		Date:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Direction:     DirectionToCollege,
		ToCollegeTime: "08:30",
	}

	at, err := ride.DepartureAt()
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), at)
}
