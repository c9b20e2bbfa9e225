// Concurrency tests for the reservation state machine (run with -race).
package models

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// guardedRide serializes transitions the way the handlers do with the ride
// row lock: one mutation at a time per ride.
type guardedRide struct {
	mu   sync.Mutex
	ride *Ride
}

func (g *guardedRide) request(hitcherID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.ride.AddRequest(hitcherID, "A", "B", 25.0, time.Now())
	return err
}

func (g *guardedRide) accept(hitcherID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.ride.AcceptRequest(hitcherID)
	return err
}

func (g *guardedRide) cancel(hitcherID uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, _, err := g.ride.CancelRequest(hitcherID)
	return err
}

// seatInvariantHolds checks availableSeats + accepted == vehicleSeats and
// that the counter never went negative.
func (g *guardedRide) seatInvariantHolds() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ride.AvailableSeats >= 0 &&
		g.ride.AvailableSeats+g.ride.AcceptedCount() == g.ride.VehicleSeats
}

func newGuardedRide(t *testing.T, seats int, hitchers ...uint) *guardedRide {
	t.Helper()
	g := &guardedRide{ride: newScheduledRide(seats)}
	for _, h := range hitchers {
		if err := g.request(h); err != nil {
			t.Fatalf("seed request for hitcher %d: %v", h, err)
		}
	}
	return g
}

func TestConcurrentAcceptsLastSeat(t *testing.T) {
	hitchers := []uint{11, 12, 13, 14, 15, 16, 17, 18}
	g := newGuardedRide(t, 1, hitchers...)

	var wg sync.WaitGroup
	errs := make(chan error, len(hitchers))

	for _, h := range hitchers {
		wg.Add(1)
		go func(hitcherID uint) {
			defer wg.Done()
			errs <- g.accept(hitcherID)
			if !g.seatInvariantHolds() {
				t.Errorf("seat invariant violated after accepting hitcher %d", hitcherID)
			}
		}(h)
	}

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrNoSeatsAvailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}
	if g.ride.AvailableSeats != 0 {
		t.Fatalf("expected 0 seats left, got %d", g.ride.AvailableSeats)
	}
	if g.ride.AcceptedCount() != 1 {
		t.Fatalf("expected exactly 1 accepted request, got %d", g.ride.AcceptedCount())
	}
}

func TestConcurrentAcceptSameRequest(t *testing.T) {
	g := newGuardedRide(t, 4, 7)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.accept(7)
		}()
	}

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrRequestAlreadyResolved) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}
	if g.ride.AvailableSeats != 3 {
		t.Fatalf("expected 3 seats left, got %d", g.ride.AvailableSeats)
	}
}

func TestConcurrentAcceptVsCancel(t *testing.T) {
	g := newGuardedRide(t, 2, 7)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- g.accept(7)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- g.cancel(7)
	}()

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrRequestAlreadyResolved) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Either the cancel won and the accept lost, or the accept won and the
	// cancel then withdrew the accepted seat. Both orders end cancelled with
	// all seats free.
	if success < 1 || success > 2 {
		t.Fatalf("expected 1 or 2 successes, got %d", success)
	}
	if got := g.ride.RequestFor(7).Status; got != RequestStatusCancelled {
		t.Fatalf("unexpected final request status: %s", got)
	}
	if g.ride.AvailableSeats != 2 {
		t.Fatalf("expected 2 seats left, got %d", g.ride.AvailableSeats)
	}
	if !g.seatInvariantHolds() {
		t.Fatalf("seat invariant violated")
	}
}

func TestConcurrentRequestsAndAccepts(t *testing.T) {
	g := newGuardedRide(t, 2)

	const hitcherCount = 10
	var wg sync.WaitGroup
	acceptErrs := make(chan error, hitcherCount)

	for i := 0; i < hitcherCount; i++ {
		hitcherID := uint(100 + i)
		wg.Add(1)
		go func(h uint) {
			defer wg.Done()
			if err := g.request(h); err != nil {
				acceptErrs <- err
				return
			}
			acceptErrs <- g.accept(h)
			if !g.seatInvariantHolds() {
				t.Errorf("seat invariant violated after hitcher %d", h)
			}
		}(hitcherID)
	}

	wg.Wait()
	close(acceptErrs)

	success := 0
	for err := range acceptErrs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrNoSeatsAvailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 2 {
		t.Fatalf("expected exactly 2 successful accepts for 2 seats, got %d", success)
	}
	if g.ride.AvailableSeats != 0 {
		t.Fatalf("expected 0 seats left, got %d", g.ride.AvailableSeats)
	}
}
