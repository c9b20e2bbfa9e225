package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduledRide(seats int) *Ride {
	r := &Ride{
		DriverID:       1,
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Direction:      DirectionToCollege,
		ToCollegeTime:  "08:30",
		VehicleSeats:   seats,
		AvailableSeats: seats,
		PricePerKm:     5.0,
		Status:         RideStatusScheduled,
	}
	r.ID = 100
	return r
}

func TestAddRequest(t *testing.T) {
	ride := newScheduledRide(3)

	req, err := ride.AddRequest(7, "Hostel Gate", "Main Block", 25.0, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, RequestStatusPending, req.Status)
	assert.Equal(t, 25.0, req.Fare)

	// Seats are not taken by a request, only by acceptance.
	assert.Equal(t, 3, ride.AvailableSeats)
}

func TestAddRequest_DuplicateWhileLive(t *testing.T) {
	ride := newScheduledRide(3)

	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)

	_, err = ride.AddRequest(7, "A", "B", 25.0, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	_, err = ride.AddRequest(7, "A", "B", 25.0, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestAddRequest_ReusesResolvedSlot(t *testing.T) {
	ride := newScheduledRide(3)

	first, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	first.Status = RequestStatusRejected

	// Re-requesting after rejection resets the same slot rather than
	// creating a second request for the pair.
	again, err := ride.AddRequest(7, "C", "D", 30.0, time.Now())
	assert.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, RequestStatusPending, again.Status)
	assert.Equal(t, "C", again.PickupLocation)
	assert.Equal(t, 30.0, again.Fare)
	assert.False(t, again.AutoCancel)
	assert.Len(t, ride.HitcherRequests, 1)
}

func TestAddRequest_RideNotOpen(t *testing.T) {
	for _, status := range []string{RideStatusInProgress, RideStatusCompleted, RideStatusCancelled} {
		ride := newScheduledRide(3)
		ride.Status = status
		_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
		assert.ErrorIs(t, err, ErrRideNotOpen, status)
	}
}

func TestAddRequest_NoSeats(t *testing.T) {
	ride := newScheduledRide(1)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	_, err = ride.AddRequest(8, "A", "B", 25.0, time.Now())
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)
}

func TestAcceptRequest(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)

	req, err := ride.AcceptRequest(7)
	assert.NoError(t, err)
	assert.Equal(t, RequestStatusAccepted, req.Status)
	assert.Equal(t, 1, ride.AvailableSeats)
	assert.Equal(t, 1, ride.AcceptedCount())
}

func TestAcceptRequest_Errors(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AcceptRequest(7)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	// Second accept of the same request.
	_, err = ride.AcceptRequest(7)
	assert.ErrorIs(t, err, ErrRequestAlreadyResolved)

	// Last seat gone: further pending requests cannot be accepted.
	_, err = ride.AddRequest(8, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(8)
	require.NoError(t, err)
	_, err = ride.AddRequest(9, "A", "B", 25.0, time.Now())
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)

	ride.Status = RideStatusInProgress
	_, err = ride.AcceptRequest(8)
	assert.ErrorIs(t, err, ErrRideNotOpen)
}

func TestRejectRequest(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)

	req, err := ride.RejectRequest(7)
	assert.NoError(t, err)
	assert.Equal(t, RequestStatusRejected, req.Status)
	// Rejection never touches the seat count.
	assert.Equal(t, 2, ride.AvailableSeats)

	_, err = ride.RejectRequest(7)
	assert.ErrorIs(t, err, ErrRequestAlreadyResolved)
}

func TestCancelRequest_Pending(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)

	req, seatRestored, err := ride.CancelRequest(7)
	assert.NoError(t, err)
	assert.Equal(t, RequestStatusCancelled, req.Status)
	assert.False(t, seatRestored)
	assert.Equal(t, 2, ride.AvailableSeats)
}

func TestCancelRequest_Accepted(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)
	require.Equal(t, 1, ride.AvailableSeats)

	req, seatRestored, err := ride.CancelRequest(7)
	assert.NoError(t, err)
	assert.Equal(t, RequestStatusCancelled, req.Status)
	assert.True(t, seatRestored)
	assert.Equal(t, 2, ride.AvailableSeats)
}

func TestCancelRequest_AcceptedDuringInProgress(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	// Cancelling after departure is still allowed; the penalty decision
	// belongs to the caller.
	ride.Status = RideStatusInProgress
	_, seatRestored, err := ride.CancelRequest(7)
	assert.NoError(t, err)
	assert.True(t, seatRestored)
}

func TestCancelRequest_Errors(t *testing.T) {
	ride := newScheduledRide(2)
	_, _, err := ride.CancelRequest(7)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, _, err = ride.CancelRequest(7)
	require.NoError(t, err)
	_, _, err = ride.CancelRequest(7)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = ride.AddRequest(8, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.RejectRequest(8)
	require.NoError(t, err)
	_, _, err = ride.CancelRequest(8)
	assert.ErrorIs(t, err, ErrRequestAlreadyResolved)

	ride2 := newScheduledRide(2)
	_, err = ride2.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	ride2.Status = RideStatusCompleted
	_, _, err = ride2.CancelRequest(7)
	assert.ErrorIs(t, err, ErrRideNotOpen)
}

func TestCancelRequest_SeatRestoreCappedAtVehicleSeats(t *testing.T) {
	ride := newScheduledRide(2)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	// Simulate a drifted counter; the restore must not exceed capacity.
	ride.AvailableSeats = 2
	_, _, err = ride.CancelRequest(7)
	assert.NoError(t, err)
	assert.Equal(t, 2, ride.AvailableSeats)
}

func TestCancelByDriver(t *testing.T) {
	ride := newScheduledRide(3)
	_, err := ride.AddRequest(7, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AddRequest(8, "A", "B", 25.0, time.Now())
	require.NoError(t, err)
	_, err = ride.AcceptRequest(7)
	require.NoError(t, err)

	affected, err := ride.CancelByDriver()
	assert.NoError(t, err)
	assert.Equal(t, RideStatusCancelled, ride.Status)

	// Only the accepted request flips to cancelled-by-driver; the pending
	// one is left behind under a terminal ride.
	require.Len(t, affected, 1)
	assert.Equal(t, uint(7), affected[0].HitcherID)
	assert.Equal(t, RequestStatusCancelledByDriver, affected[0].Status)
	assert.Equal(t, RequestStatusPending, ride.RequestFor(8).Status)
}

func TestCancelByDriver_Errors(t *testing.T) {
	ride := newScheduledRide(3)
	ride.Status = RideStatusInProgress
	_, err := ride.CancelByDriver()
	assert.ErrorIs(t, err, ErrRideNotOpen)

	ride.Status = RideStatusCompleted
	_, err = ride.CancelByDriver()
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	ride.Status = RideStatusCancelled
	_, err = ride.CancelByDriver()
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestFullReservationFlow(t *testing.T) {
	// A four-seat ride collects three requests, accepts two, rejects one,
	// then one accepted hitcher backs out.
	ride := newScheduledRide(4)

	for _, hitcher := range []uint{11, 12, 13} {
		_, err := ride.AddRequest(hitcher, "Pickup", "Campus", 20.0, time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 4, ride.AvailableSeats)

	_, err := ride.AcceptRequest(11)
	require.NoError(t, err)
	_, err = ride.AcceptRequest(12)
	require.NoError(t, err)
	_, err = ride.RejectRequest(13)
	require.NoError(t, err)

	assert.Equal(t, 2, ride.AvailableSeats)
	assert.Equal(t, 2, ride.AcceptedCount())

	_, seatRestored, err := ride.CancelRequest(12)
	require.NoError(t, err)
	assert.True(t, seatRestored)
	assert.Equal(t, 3, ride.AvailableSeats)
	assert.Equal(t, 1, ride.AcceptedCount())
}
