package models

import (
	"fmt"
	"time"
)

// InProgressWindow is how long a ride stays in-progress after its scheduled
// departure before it is considered completed.
const InProgressWindow = 2 * time.Hour

// departureTimeLayout is the wall-clock format stored on the ride.
const departureTimeLayout = "15:04"

// DepartureTime returns the wall-clock time relevant to the ride's direction.
func (r *Ride) DepartureTime() string {
	if r.Direction == DirectionFromCollege {
		return r.FromCollegeTime
	}
	return r.ToCollegeTime
}

// DepartureAt combines the ride date with the direction's scheduled time.
func (r *Ride) DepartureAt() (time.Time, error) {
	t, err := time.ParseInLocation(departureTimeLayout, r.DepartureTime(), r.Date.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid departure time %q: %w", r.DepartureTime(), err)
	}
	return time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(),
		t.Hour(), t.Minute(), 0, 0, r.Date.Location()), nil
}

// ResolveStatus derives the ride status for the given wall-clock time. It is
// side-effect-free: the caller persists the result, exactly once, if it
// differs from the stored status. Terminal statuses never change; a benign
// parse failure leaves the status as stored.
func ResolveStatus(r *Ride, now time.Time) string {
	if r.Status != RideStatusScheduled && r.Status != RideStatusInProgress {
		return r.Status
	}
	departure, err := r.DepartureAt()
	if err != nil {
		return r.Status
	}
	switch {
	case !now.Before(departure.Add(InProgressWindow)):
		return RideStatusCompleted
	case !now.Before(departure) && r.Status == RideStatusScheduled:
		return RideStatusInProgress
	default:
		return r.Status
	}
}
