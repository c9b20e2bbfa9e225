package models

import (
	"time"

	"gorm.io/gorm"
)

// Ride status constants. `in-progress` and `completed` are derived from
// wall-clock time (see schedule.go), never set directly by a client.
const (
	RideStatusScheduled  = "scheduled"
	RideStatusInProgress = "in-progress"
	RideStatusCompleted  = "completed"
	RideStatusCancelled  = "cancelled"
)

// Travel directions relative to campus.
const (
	DirectionToCollege   = "toCollege"
	DirectionFromCollege = "fromCollege"
)

// Hitcher request status constants. `cancelled-by-driver` is distinct from
// `cancelled` so a hitcher is never penalized for a driver's cancellation.
const (
	RequestStatusPending           = "pending"
	RequestStatusAccepted          = "accepted"
	RequestStatusRejected          = "rejected"
	RequestStatusCancelled         = "cancelled"
	RequestStatusCancelledByDriver = "cancelled-by-driver"
)

// Ride creation policy limits.
const (
	MinSeats       = 1
	MaxSeats       = 6
	MinPricePerKm  = 1.0
	MaxPricePerKm  = 10.0
	MaxAdvanceDays = 7
)

// Ride represents one driver's offered trip on one calendar date in one
// direction. Requests are embedded children: the ride row plus its request
// rows form a single consistency boundary and every mutation happens inside
// one transaction scoped to them.
type Ride struct {
	gorm.Model
	DriverID        uint             `json:"driverId" gorm:"not null;index"`
	Driver          *User            `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Date            time.Time        `json:"date" gorm:"not null"`
	Direction       string           `json:"direction" gorm:"not null"`
	ToCollegeTime   string           `json:"toCollegeTime"`   // "15:04" wall clock, used when direction is toCollege
	FromCollegeTime string           `json:"fromCollegeTime"` // "15:04" wall clock, used when direction is fromCollege
	VehicleSeats    int              `json:"vehicleSeats" gorm:"not null"`
	AvailableSeats  int              `json:"availableSeats" gorm:"not null;check:available_seats >= 0"`
	PricePerKm      float64          `json:"pricePerKm" gorm:"not null"`
	Status          string           `json:"status" gorm:"not null;default:'scheduled'"`
	HitcherRequests []HitcherRequest `json:"hitcherRequests,omitempty" gorm:"foreignKey:RideID"`
}

// TableName specifies the table name
func (Ride) TableName() string {
	return "rides"
}

// HitcherRequest is one passenger's application to join a specific ride.
// At most one row exists per (ride, hitcher) pair; status is the terminal
// marker, rows are never deleted.
type HitcherRequest struct {
	gorm.Model
	RideID          uint      `json:"rideId" gorm:"not null;uniqueIndex:idx_ride_hitcher"`
	HitcherID       uint      `json:"hitcherId" gorm:"not null;uniqueIndex:idx_ride_hitcher"`
	Hitcher         *User     `json:"hitcher,omitempty" gorm:"foreignKey:HitcherID"`
	Status          string    `json:"status" gorm:"not null;default:'pending'"`
	PickupLocation  string    `json:"pickupLocation"`
	DropoffLocation string    `json:"dropoffLocation"`
	Fare            float64   `json:"fare" gorm:"not null"` // pricePerKm × distanceToCollege, fixed at request time
	RequestTime     time.Time `json:"requestTime" gorm:"not null"`
	AutoCancel      bool      `json:"autoCancel" gorm:"not null;default:false"`
}

// TableName specifies the table name
func (HitcherRequest) TableName() string {
	return "hitcher_requests"
}

// IsTerminal reports whether the ride has reached a final status.
func (r *Ride) IsTerminal() bool {
	return r.Status == RideStatusCompleted || r.Status == RideStatusCancelled
}

// RequestFor returns the request belonging to the given hitcher, or nil.
func (r *Ride) RequestFor(hitcherID uint) *HitcherRequest {
	for i := range r.HitcherRequests {
		if r.HitcherRequests[i].HitcherID == hitcherID {
			return &r.HitcherRequests[i]
		}
	}
	return nil
}

// AcceptedCount returns the number of accepted requests on the ride.
func (r *Ride) AcceptedCount() int {
	n := 0
	for i := range r.HitcherRequests {
		if r.HitcherRequests[i].Status == RequestStatusAccepted {
			n++
		}
	}
	return n
}

// IsResolved reports whether the request left the pending state.
func (hr *HitcherRequest) IsResolved() bool {
	return hr.Status != RequestStatusPending
}

// IsLive reports whether the request still occupies the (ride, hitcher) slot:
// rejected and cancelled requests do not block a new request elsewhere, but
// the unique index means they do block a second request on the same ride.
func (hr *HitcherRequest) IsLive() bool {
	return hr.Status == RequestStatusPending || hr.Status == RequestStatusAccepted
}

// AddRequest validates and records a pending request for the hitcher.
// Capacity is reserved only on acceptance, not on request: pending requests
// may overbook up to the seat count, first-come/first-accepted. A rejected or
// cancelled request is reset in place rather than duplicated, since only one
// row may exist per (ride, hitcher) pair.
func (r *Ride) AddRequest(hitcherID uint, pickup, dropoff string, fare float64, now time.Time) (*HitcherRequest, error) {
	if r.Status != RideStatusScheduled {
		return nil, ErrRideNotOpen
	}
	if r.AvailableSeats == 0 {
		return nil, ErrNoSeatsAvailable
	}
	if existing := r.RequestFor(hitcherID); existing != nil {
		if existing.IsLive() {
			return nil, ErrDuplicateRequest
		}
		existing.Status = RequestStatusPending
		existing.PickupLocation = pickup
		existing.DropoffLocation = dropoff
		existing.Fare = fare
		existing.RequestTime = now
		existing.AutoCancel = false
		return existing, nil
	}
	req := HitcherRequest{
		RideID:          r.ID,
		HitcherID:       hitcherID,
		Status:          RequestStatusPending,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		Fare:            fare,
		RequestTime:     now,
	}
	r.HitcherRequests = append(r.HitcherRequests, req)
	return &r.HitcherRequests[len(r.HitcherRequests)-1], nil
}

// AcceptRequest flips the hitcher's pending request to accepted and takes one
// seat. Preconditions are validated against the receiver's current state; the
// persistence layer re-enforces them with guarded writes to close the
// read-then-write race.
func (r *Ride) AcceptRequest(hitcherID uint) (*HitcherRequest, error) {
	if r.Status != RideStatusScheduled {
		return nil, ErrRideNotOpen
	}
	req := r.RequestFor(hitcherID)
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestAlreadyResolved
	}
	if r.AvailableSeats == 0 {
		return nil, ErrNoSeatsAvailable
	}
	req.Status = RequestStatusAccepted
	r.AvailableSeats--
	return req, nil
}

// RejectRequest flips the hitcher's pending request to rejected. A rejection
// before acceptance touches neither seats nor reliability.
func (r *Ride) RejectRequest(hitcherID uint) (*HitcherRequest, error) {
	if r.Status != RideStatusScheduled {
		return nil, ErrRideNotOpen
	}
	req := r.RequestFor(hitcherID)
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != RequestStatusPending {
		return nil, ErrRequestAlreadyResolved
	}
	req.Status = RequestStatusRejected
	return req, nil
}

// CancelRequest withdraws the hitcher's own request. Returns the request and
// whether a seat was restored (only when an accepted request is withdrawn —
// that path also carries the reliability penalty, decided by the caller).
func (r *Ride) CancelRequest(hitcherID uint) (*HitcherRequest, bool, error) {
	req := r.RequestFor(hitcherID)
	if req == nil {
		return nil, false, ErrRequestNotFound
	}
	switch req.Status {
	case RequestStatusCancelled, RequestStatusCancelledByDriver:
		return req, false, ErrAlreadyCancelled
	case RequestStatusRejected:
		return req, false, ErrRequestAlreadyResolved
	}
	if r.Status != RideStatusScheduled && r.Status != RideStatusInProgress {
		return req, false, ErrRideNotOpen
	}
	wasAccepted := req.Status == RequestStatusAccepted
	req.Status = RequestStatusCancelled
	if wasAccepted {
		r.AvailableSeats++
		if r.AvailableSeats > r.VehicleSeats {
			r.AvailableSeats = r.VehicleSeats
		}
	}
	return req, wasAccepted, nil
}

// CancelByDriver cancels the whole ride. Accepted requests become
// cancelled-by-driver; pending ones are left as-is and filtered out of
// active views by the parent ride's terminal status. Returns the affected
// accepted requests so the caller can notify their hitchers.
func (r *Ride) CancelByDriver() ([]*HitcherRequest, error) {
	if r.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}
	if r.Status != RideStatusScheduled {
		return nil, ErrRideNotOpen
	}
	r.Status = RideStatusCancelled
	var affected []*HitcherRequest
	for i := range r.HitcherRequests {
		if r.HitcherRequests[i].Status == RequestStatusAccepted {
			r.HitcherRequests[i].Status = RequestStatusCancelledByDriver
			affected = append(affected, &r.HitcherRequests[i])
		}
	}
	return affected, nil
}
