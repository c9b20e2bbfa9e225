package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arunbonal/RideShare-sub000/internal/models"
	"github.com/arunbonal/RideShare-sub000/internal/reliability"
	"github.com/arunbonal/RideShare-sub000/internal/services"
	"github.com/arunbonal/RideShare-sub000/pkg/utils"
)

// lockRide reloads the ride and its requests inside the transaction with a
// row lock, so every mutation validates against freshly-read state and two
// racing operations on one ride serialize deterministically.
func lockRide(tx *gorm.DB, rideID uint) (*models.Ride, error) {
	var ride models.Ride
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("HitcherRequests").
		First(&ride, rideID).Error
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

// RequestSeat lets a hitcher apply for a seat on a scheduled ride. The fare
// is fixed here from the ride's per-km price and the hitcher's commute
// distance; the seat itself is only taken when the driver accepts.
func RequestSeat(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hitcherID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var input struct {
			Pickup  string `json:"pickup"`
			Dropoff string `json:"dropoff"`
		}
		if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var profile models.HitcherProfile
		if err := db.Where("user_id = ?", hitcherID).First(&profile).Error; err != nil {
			c.JSON(403, gin.H{"error": "Hitcher profile required to request rides"})
			return
		}
		if profile.DistanceToCollege <= 0 {
			c.JSON(400, gin.H{"error": "Set your commute distance before requesting rides"})
			return
		}
		if input.Pickup == "" {
			input.Pickup = profile.DefaultPickup
		}
		if input.Dropoff == "" {
			input.Dropoff = profile.DefaultDropoff
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}
		if ride.DriverID == hitcherID {
			c.JSON(403, gin.H{"error": "You cannot request a seat on your own ride"})
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		var request *models.HitcherRequest
		txErr := db.Transaction(func(tx *gorm.DB) error {
			locked, err := lockRide(tx, ride.ID)
			if err != nil {
				return err
			}
			fare := utils.CalculateFare(locked.PricePerKm, profile.DistanceToCollege)
			req, err := locked.AddRequest(hitcherID, input.Pickup, input.Dropoff, fare, time.Now())
			if err != nil {
				ride.Status = locked.Status
				return err
			}
			if req.ID == 0 {
				if err := tx.Create(req).Error; err != nil {
					return err
				}
			} else {
				// A rejected or cancelled request exists for this pair; the
				// unique (ride, hitcher) slot is reused instead of a second
				// row being created.
				if err := tx.Model(req).Select("status", "pickup_location",
					"dropoff_location", "fare", "request_time", "auto_cancel").
					Updates(req).Error; err != nil {
					return err
				}
			}
			request = req
			return nil
		})
		if txErr != nil {
			if isStateError(txErr) {
				respondStateError(c, txErr, ride.Status, requestStatusFor(&ride, hitcherID))
				return
			}
			c.JSON(500, gin.H{"error": "Failed to create request"})
			return
		}

		// Notify the driver after commit.
		ctx := context.Background()
		hub.SendEvent(ride.DriverID, services.EventSeatRequested, gin.H{
			"rideId":    ride.ID,
			"requestId": request.ID,
			"hitcherId": hitcherID,
			"pickup":    request.PickupLocation,
			"fare":      request.Fare,
		})
		var hitcher models.User
		if err := db.First(&hitcher, hitcherID).Error; err == nil {
			var driver models.User
			if err := db.First(&driver, ride.DriverID).Error; err == nil && driver.FCMToken != "" {
				go services.SendSeatRequestedNotification(ctx, driver.FCMToken,
					ride.ID, hitcher.Username, request.PickupLocation, request.Fare)
			}
		}
		services.PublishRideUpdate(ctx, ride.ID, services.EventSeatRequested, map[string]interface{}{
			"hitcherId": hitcherID,
		})

		c.JSON(201, gin.H{
			"requestId":     request.ID,
			"rideId":        ride.ID,
			"requestStatus": request.Status,
			"fare":          request.Fare,
		})
	}
}

// acceptSeat runs the acceptance transaction: the hitcher's pending request
// flips to accepted, one seat is taken, and the hitcher's other pending
// requests for the same date and direction are withdrawn in the same
// transaction. After the ride row lock, every pending request the hitcher
// holds for that date and direction is locked in id order; the accepted row
// and the cascade targets both come from that one locked set, so two
// simultaneous accepts touching the same rows queue instead of deadlocking.
func acceptSeat(db *gorm.DB, ride *models.Ride, hitcherID uint) (accepted *models.HitcherRequest, cascaded []models.HitcherRequest, seatsLeft int, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := lockRide(tx, ride.ID)
		if err != nil {
			return err
		}
		ride.Status = locked.Status
		ride.HitcherRequests = locked.HitcherRequests

		if locked.Status != models.RideStatusScheduled {
			return models.ErrRideNotOpen
		}

		var candidates []models.HitcherRequest
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "hitcher_requests"}}).
			Select("hitcher_requests.*").
			Joins("JOIN rides ON rides.id = hitcher_requests.ride_id").
			Where("hitcher_requests.hitcher_id = ? AND hitcher_requests.status = ?",
				hitcherID, models.RequestStatusPending).
			Where("rides.date = ? AND rides.direction = ?", locked.Date, locked.Direction).
			Order("hitcher_requests.id").
			Find(&candidates).Error; err != nil {
			return err
		}

		var own *models.HitcherRequest
		var others []models.HitcherRequest
		for i := range candidates {
			if candidates[i].RideID == locked.ID {
				own = &candidates[i]
			} else {
				others = append(others, candidates[i])
			}
		}
		if own == nil {
			if locked.RequestFor(hitcherID) == nil {
				return models.ErrRequestNotFound
			}
			return models.ErrRequestAlreadyResolved
		}
		if locked.AvailableSeats == 0 {
			return models.ErrNoSeatsAvailable
		}

		own.Status = models.RequestStatusAccepted
		if err := tx.Model(own).Update("status", own.Status).Error; err != nil {
			return err
		}
		locked.AvailableSeats--
		if err := tx.Model(&models.Ride{}).Where("id = ?", locked.ID).
			Update("available_seats", locked.AvailableSeats).Error; err != nil {
			return err
		}

		// Auto-cancellation cascade. The rows are locked and were pending
		// when read; the ride they sit on may be in any non-terminal state.
		// Policy-neutral, so the ledger is never involved.
		if len(others) > 0 {
			ids := make([]uint, 0, len(others))
			for i := range others {
				ids = append(ids, others[i].ID)
			}
			if err := tx.Model(&models.HitcherRequest{}).
				Where("id IN ?", ids).
				Updates(map[string]interface{}{
					"status":      models.RequestStatusCancelled,
					"auto_cancel": true,
				}).Error; err != nil {
				return err
			}
			for i := range others {
				others[i].Status = models.RequestStatusCancelled
				others[i].AutoCancel = true
			}
		}

		accepted = own
		cascaded = others
		seatsLeft = locked.AvailableSeats
		return nil
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return accepted, cascaded, seatsLeft, nil
}

// AcceptRequest lets the owning driver accept a pending request: the request
// flips to accepted, one seat is taken, and the hitcher's other pending
// requests for the same date and direction are withdrawn automatically with
// no reliability impact.
func AcceptRequest(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}
		hitcherID, err := strconv.ParseUint(c.Param("hitcherId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid hitcher ID"})
			return
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").Preload("Driver").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}
		if ride.DriverID != driverID {
			respondStateError(c, models.ErrNotOwner, ride.Status, "")
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		accepted, cascaded, seatsLeft, txErr := acceptSeat(db, &ride, uint(hitcherID))
		if txErr != nil {
			if isStateError(txErr) {
				respondStateError(c, txErr, ride.Status, requestStatusFor(&ride, uint(hitcherID)))
				return
			}
			c.JSON(500, gin.H{"error": "Failed to accept request"})
			return
		}

		ctx := context.Background()
		services.SetRideStatusCache(ctx, ride.ID, models.RideStatusScheduled, seatsLeft)
		services.PublishRideUpdate(ctx, ride.ID, services.EventRequestAccepted, map[string]interface{}{
			"hitcherId":      hitcherID,
			"availableSeats": seatsLeft,
		})

		driverName := ""
		if ride.Driver != nil {
			driverName = ride.Driver.Username
		}
		hub.SendEvent(uint(hitcherID), services.EventRequestAccepted, gin.H{
			"rideId":         ride.ID,
			"requestId":      accepted.ID,
			"departureTime":  ride.DepartureTime(),
			"availableSeats": seatsLeft,
		})
		var hitcher models.User
		if err := db.First(&hitcher, hitcherID).Error; err == nil && hitcher.FCMToken != "" {
			go services.SendRequestAcceptedNotification(ctx, hitcher.FCMToken,
				ride.ID, driverName, ride.DepartureTime())
		}
		for _, dropped := range cascaded {
			hub.SendEvent(dropped.HitcherID, services.EventRequestAutoCancelled, gin.H{
				"rideId":    dropped.RideID,
				"requestId": dropped.ID,
				"reason":    "Another ride was confirmed for the same trip",
			})
			if hitcher.FCMToken != "" {
				go services.SendAutoCancelledNotification(ctx, hitcher.FCMToken, dropped.RideID)
			}
		}

		c.JSON(200, gin.H{
			"message":        "Request accepted",
			"rideId":         ride.ID,
			"requestStatus":  accepted.Status,
			"availableSeats": seatsLeft,
		})
	}
}

// RejectRequest lets the owning driver decline a pending request. Rejection
// before acceptance touches neither seats nor reliability.
func RejectRequest(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}
		hitcherID, err := strconv.ParseUint(c.Param("hitcherId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid hitcher ID"})
			return
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}
		if ride.DriverID != driverID {
			respondStateError(c, models.ErrNotOwner, ride.Status, "")
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		var rejected *models.HitcherRequest
		txErr := db.Transaction(func(tx *gorm.DB) error {
			locked, err := lockRide(tx, ride.ID)
			if err != nil {
				return err
			}
			req, err := locked.RejectRequest(uint(hitcherID))
			if err != nil {
				ride.Status = locked.Status
				ride.HitcherRequests = locked.HitcherRequests
				return err
			}
			if err := tx.Model(req).Update("status", req.Status).Error; err != nil {
				return err
			}
			rejected = req
			return nil
		})
		if txErr != nil {
			if isStateError(txErr) {
				respondStateError(c, txErr, ride.Status, requestStatusFor(&ride, uint(hitcherID)))
				return
			}
			c.JSON(500, gin.H{"error": "Failed to reject request"})
			return
		}

		ctx := context.Background()
		hub.SendEvent(uint(hitcherID), services.EventRequestRejected, gin.H{
			"rideId":    ride.ID,
			"requestId": rejected.ID,
		})
		var hitcher models.User
		if err := db.First(&hitcher, hitcherID).Error; err == nil && hitcher.FCMToken != "" {
			go services.SendRequestRejectedNotification(ctx, hitcher.FCMToken, ride.ID)
		}

		c.JSON(200, gin.H{
			"message":       "Request rejected",
			"rideId":        ride.ID,
			"requestStatus": rejected.Status,
		})
	}
}

// CancelRequest lets a hitcher withdraw their own request. Withdrawing an
// accepted request frees the seat and costs the hitcher the cancellation
// penalty; withdrawing a still-pending one costs nothing.
func CancelRequest(db *gorm.DB, hub *services.Hub, ledger reliability.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		hitcherID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		var cancelled *models.HitcherRequest
		var penalized bool
		var newRate float64
		var seatsLeft int
		txErr := db.Transaction(func(tx *gorm.DB) error {
			locked, err := lockRide(tx, ride.ID)
			if err != nil {
				return err
			}
			req, seatRestored, err := locked.CancelRequest(hitcherID)
			if err != nil {
				ride.Status = locked.Status
				ride.HitcherRequests = locked.HitcherRequests
				return err
			}
			if err := tx.Model(req).Update("status", req.Status).Error; err != nil {
				return err
			}
			if seatRestored {
				if err := tx.Model(&models.Ride{}).Where("id = ?", locked.ID).
					Update("available_seats", locked.AvailableSeats).Error; err != nil {
					return err
				}
				penalized, newRate, err = ledger.Penalize(tx, hitcherID, locked.ID,
					models.RoleHitcher, reliability.ActionCancelAccepted)
				if err != nil {
					return err
				}
			}
			cancelled = req
			seatsLeft = locked.AvailableSeats
			return nil
		})
		if txErr != nil {
			if isStateError(txErr) {
				respondStateError(c, txErr, ride.Status, requestStatusFor(&ride, hitcherID))
				return
			}
			c.JSON(500, gin.H{"error": "Failed to cancel request"})
			return
		}

		ctx := context.Background()
		services.SetRideStatusCache(ctx, ride.ID, ride.Status, seatsLeft)
		services.PublishRideUpdate(ctx, ride.ID, services.EventRequestCancelled, map[string]interface{}{
			"hitcherId":      hitcherID,
			"availableSeats": seatsLeft,
		})

		hub.SendEvent(ride.DriverID, services.EventRequestCancelled, gin.H{
			"rideId":         ride.ID,
			"hitcherId":      hitcherID,
			"availableSeats": seatsLeft,
		})
		var hitcher models.User
		if err := db.First(&hitcher, hitcherID).Error; err == nil {
			var driver models.User
			if err := db.First(&driver, ride.DriverID).Error; err == nil && driver.FCMToken != "" {
				go services.SendRequestCancelledNotification(ctx, driver.FCMToken, ride.ID, hitcher.Username)
			}
		}

		response := gin.H{
			"message":       "Request cancelled",
			"rideId":        ride.ID,
			"requestStatus": cancelled.Status,
		}
		if penalized {
			response["reliabilityRate"] = newRate
		}
		c.JSON(200, response)
	}
}

// GetHitcherStatus reports the calling hitcher's request status on a ride.
func GetHitcherStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hitcherID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		req := ride.RequestFor(hitcherID)
		if req == nil {
			respondStateError(c, models.ErrRequestNotFound, ride.Status, "")
			return
		}

		c.JSON(200, gin.H{
			"rideId":        ride.ID,
			"rideStatus":    ride.Status,
			"requestStatus": req.Status,
			"autoCancel":    req.AutoCancel,
			"fare":          req.Fare,
		})
	}
}

// GetMyRequests lists the calling hitcher's requests across rides.
func GetMyRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hitcherID := c.GetUint("userId")

		var requests []models.HitcherRequest
		if err := db.Where("hitcher_id = ?", hitcherID).
			Order("created_at DESC").
			Find(&requests).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch requests"})
			return
		}

		c.JSON(200, requests)
	}
}

// ReportNoShow records that the other party failed to appear for an accepted,
// non-cancelled ride. Detection happens outside this service; the report only
// feeds the ledger, which doubles the cancellation penalty by product rule.
func ReportNoShow(db *gorm.DB, ledger reliability.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reporterID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		var input struct {
			HitcherID uint `json:"hitcherId"` // set when a driver reports a hitcher
		}
		if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		// A no-show only makes sense once the ride has departed, and never
		// on a cancelled ride.
		if ride.Status != models.RideStatusInProgress && ride.Status != models.RideStatusCompleted {
			respondStateError(c, models.ErrRideNotOpen, ride.Status, "")
			return
		}

		var targetID uint
		var targetRole string
		if ride.DriverID == reporterID {
			// Driver reporting an accepted hitcher.
			req := ride.RequestFor(input.HitcherID)
			if req == nil || req.Status != models.RequestStatusAccepted {
				c.JSON(404, gin.H{"error": "No accepted request for that hitcher on this ride"})
				return
			}
			targetID = input.HitcherID
			targetRole = models.RoleHitcher
		} else {
			// Hitcher reporting the driver; only confirmed passengers may.
			req := ride.RequestFor(reporterID)
			if req == nil || req.Status != models.RequestStatusAccepted {
				c.JSON(403, gin.H{"error": "Only a confirmed passenger may report the driver"})
				return
			}
			targetID = ride.DriverID
			targetRole = models.RoleDriver
		}

		var applied bool
		var newRate float64
		txErr := db.Transaction(func(tx *gorm.DB) error {
			var err error
			applied, newRate, err = ledger.Penalize(tx, targetID, ride.ID,
				targetRole, reliability.ActionNoShow)
			return err
		})
		if txErr != nil {
			c.JSON(500, gin.H{"error": "Failed to record no-show"})
			return
		}

		c.JSON(200, gin.H{
			"message":         "No-show recorded",
			"applied":         applied,
			"reliabilityRate": newRate,
		})
	}
}

// PreviewCancelImpact projects what an action would do to the caller's
// reliability rate, without committing anything.
func PreviewCancelImpact(db *gorm.DB, ledger reliability.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		role := c.Query("role")
		if role != models.RoleDriver && role != models.RoleHitcher {
			c.JSON(400, gin.H{"error": "role must be driver or hitcher"})
			return
		}
		action, err := reliability.ParseAction(c.Query("action"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		current, err := ledger.CurrentRate(db, userID, role)
		if err != nil {
			c.JSON(404, gin.H{"error": "No " + role + " profile for this user"})
			return
		}

		c.JSON(200, gin.H{
			"currentRate": current,
			"newRate":     ledger.Preview(current, action),
		})
	}
}

// requestStatusFor returns the stored status of the hitcher's request for
// conflict responses, or "" when there is none.
func requestStatusFor(ride *models.Ride, hitcherID uint) string {
	if req := ride.RequestFor(hitcherID); req != nil {
		return req.Status
	}
	return ""
}
