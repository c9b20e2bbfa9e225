package models

import "errors"

// State-conflict and authorization errors surfaced by the reservation
// operations. Handlers map these onto HTTP codes and always attach the
// current authoritative status so callers can reconcile their view.
var (
	ErrRideNotOpen            = errors.New("ride is not open for requests")
	ErrNoSeatsAvailable       = errors.New("no seats available")
	ErrDuplicateRequest       = errors.New("hitcher already has a request on this ride")
	ErrRequestAlreadyResolved = errors.New("request has already been resolved")
	ErrRequestNotFound        = errors.New("no request for this hitcher on this ride")
	ErrAlreadyCancelled       = errors.New("request is already cancelled")
	ErrAlreadyTerminal        = errors.New("ride is already in a terminal state")
	ErrNotOwner               = errors.New("only the owning driver may perform this action")
)
