package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/arunbonal/RideShare-sub000/internal/models"
)

// respondStateError maps a reservation error onto an HTTP response. Every
// state-conflict response carries the current authoritative ride and request
// status so the caller can reconcile its view instead of blindly retrying.
func respondStateError(c *gin.Context, err error, rideStatus, requestStatus string) {
	body := gin.H{"error": err.Error()}
	if rideStatus != "" {
		body["rideStatus"] = rideStatus
	}
	if requestStatus != "" {
		body["requestStatus"] = requestStatus
	}

	switch {
	case errors.Is(err, models.ErrNotOwner):
		c.JSON(403, body)
	case errors.Is(err, models.ErrRequestNotFound):
		c.JSON(404, body)
	case errors.Is(err, models.ErrRideNotOpen),
		errors.Is(err, models.ErrNoSeatsAvailable),
		errors.Is(err, models.ErrDuplicateRequest),
		errors.Is(err, models.ErrRequestAlreadyResolved),
		errors.Is(err, models.ErrAlreadyCancelled),
		errors.Is(err, models.ErrAlreadyTerminal):
		c.JSON(409, body)
	default:
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}

// isStateError reports whether the error belongs to the reservation taxonomy.
func isStateError(err error) bool {
	for _, known := range []error{
		models.ErrRideNotOpen,
		models.ErrNoSeatsAvailable,
		models.ErrDuplicateRequest,
		models.ErrRequestAlreadyResolved,
		models.ErrRequestNotFound,
		models.ErrAlreadyCancelled,
		models.ErrAlreadyTerminal,
		models.ErrNotOwner,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
