package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arunbonal/RideShare-sub000/internal/models"
	"github.com/arunbonal/RideShare-sub000/internal/reliability"
	"github.com/arunbonal/RideShare-sub000/internal/services"
)

const dateLayout = "2006-01-02"

// CreateRide lets a driver offer a ride for one date and direction.
func CreateRide(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		var input struct {
			Date            string  `json:"date" binding:"required"`
			Direction       string  `json:"direction" binding:"required,oneof=toCollege fromCollege"`
			ToCollegeTime   string  `json:"toCollegeTime"`
			FromCollegeTime string  `json:"fromCollegeTime"`
			Seats           int     `json:"seats" binding:"required"`
			PricePerKm      float64 `json:"pricePerKm" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var profile models.DriverProfile
		if err := db.Where("user_id = ?", driverID).First(&profile).Error; err != nil {
			c.JSON(403, gin.H{"error": "Driver profile required to offer rides"})
			return
		}

		if input.Seats < models.MinSeats || input.Seats > models.MaxSeats {
			c.JSON(400, gin.H{"error": "Seats must be between 1 and 6"})
			return
		}
		if input.Seats > profile.SeatCount {
			c.JSON(400, gin.H{"error": "Seats exceed the vehicle's capacity"})
			return
		}
		if input.PricePerKm < models.MinPricePerKm || input.PricePerKm > models.MaxPricePerKm {
			c.JSON(400, gin.H{"error": "Price per km must be between 1 and 10"})
			return
		}

		date, err := time.ParseInLocation(dateLayout, input.Date, time.Local)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		if date.Before(today) || date.After(today.AddDate(0, 0, models.MaxAdvanceDays)) {
			c.JSON(400, gin.H{"error": "Date must be within the next 7 days"})
			return
		}

		departureTime := input.ToCollegeTime
		if input.Direction == models.DirectionFromCollege {
			departureTime = input.FromCollegeTime
		}
		if _, err := time.Parse("15:04", departureTime); err != nil {
			c.JSON(400, gin.H{"error": "Departure time for the chosen direction must be HH:MM"})
			return
		}

		// One ride per driver per date and direction
		var existing int64
		db.Model(&models.Ride{}).
			Where("driver_id = ? AND date = ? AND direction = ? AND status <> ?",
				driverID, date, input.Direction, models.RideStatusCancelled).
			Count(&existing)
		if existing > 0 {
			c.JSON(409, gin.H{"error": "You already have a ride for this date and direction"})
			return
		}

		ride := models.Ride{
			DriverID:        driverID,
			Date:            date,
			Direction:       input.Direction,
			ToCollegeTime:   input.ToCollegeTime,
			FromCollegeTime: input.FromCollegeTime,
			VehicleSeats:    input.Seats,
			AvailableSeats:  input.Seats,
			PricePerKm:      input.PricePerKm,
			Status:          models.RideStatusScheduled,
		}

		if err := db.Create(&ride).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create ride"})
			return
		}

		ctx := context.Background()
		services.SetRideStatusCache(ctx, ride.ID, ride.Status, ride.AvailableSeats)

		c.JSON(201, gin.H{
			"rideId":         ride.ID,
			"status":         ride.Status,
			"availableSeats": ride.AvailableSeats,
		})
	}
}

// GetAvailableRides lists open scheduled rides hitchers can request,
// optionally filtered by date and direction.
func GetAvailableRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		query := db.Preload("Driver").
			Where("status = ? AND available_seats > 0 AND driver_id <> ?",
				models.RideStatusScheduled, userID)

		if dateStr := c.Query("date"); dateStr != "" {
			date, err := time.ParseInLocation(dateLayout, dateStr, time.Local)
			if err != nil {
				c.JSON(400, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
				return
			}
			query = query.Where("date = ?", date)
		}
		if direction := c.Query("direction"); direction != "" {
			query = query.Where("direction = ?", direction)
		}

		var rides []models.Ride
		if err := query.Order("date ASC").Find(&rides).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch rides"})
			return
		}

		c.JSON(200, rides)
	}
}

// GetDriverRides lists the calling driver's own rides with their requests.
func GetDriverRides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		var rides []models.Ride
		if err := db.Preload("HitcherRequests").Preload("HitcherRequests.Hitcher").
			Where("driver_id = ?", driverID).
			Order("date DESC").
			Find(&rides).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch rides"})
			return
		}

		c.JSON(200, rides)
	}
}

// GetRideStatus reports the ride's current status and seat availability.
// Reading resolves time-driven transitions lazily, so a poll is enough to
// move a ride to in-progress or completed.
func GetRideStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
			return
		}

		ctx := context.Background()

		// Terminal statuses never change again, so the cache can answer
		// without touching the database.
		if snapshot, err := services.GetRideStatusCache(ctx, uint(rideID)); err == nil {
			if snapshot.Status == models.RideStatusCompleted || snapshot.Status == models.RideStatusCancelled {
				c.JSON(200, gin.H{
					"rideId":         snapshot.RideID,
					"rideStatus":     snapshot.Status,
					"availableSeats": snapshot.AvailableSeats,
				})
				return
			}
		}

		var ride models.Ride
		if err := db.Preload("HitcherRequests").First(&ride, rideID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Ride not found"})
			return
		}

		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		services.SetRideStatusCache(ctx, ride.ID, ride.Status, ride.AvailableSeats)

		c.JSON(200, gin.H{
			"rideId":         ride.ID,
			"rideStatus":     ride.Status,
			"availableSeats": ride.AvailableSeats,
		})
	}
}

// CancelRide lets the owning driver cancel a scheduled ride. Accepted
// requests become cancelled-by-driver so their hitchers carry no reliability
// penalty; the driver takes one cancellation penalty if anyone had been
// accepted.
func CancelRide(db *gorm.DB, hub *services.Hub, ledger reliability.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.GetUint("userId")

		rideID, err := strconv.ParseUint(c.Param("rideId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid ride ID"})
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

		// Resolve time-driven transitions first: a ride whose departure has
		// passed can no longer be cancelled by its driver.
		if _, err := services.ResolveAndPersistRideStatus(db, &ride, time.Now()); err != nil {
			log.WithError(err).WithField("rideId", ride.ID).Error("Failed to resolve ride status")
		}

		var affected []models.HitcherRequest
		txErr := db.Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&models.Ride{}).
				Where("id = ? AND status = ?", ride.ID, models.RideStatusScheduled).
				Update("status", models.RideStatusCancelled)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var current models.Ride
				if err := tx.First(&current, ride.ID).Error; err != nil {
					return err
				}
				ride.Status = current.Status
				if current.IsTerminal() {
					return models.ErrAlreadyTerminal
				}
				return models.ErrRideNotOpen
			}
			ride.Status = models.RideStatusCancelled

			if err := tx.Where("ride_id = ? AND status = ?", ride.ID, models.RequestStatusAccepted).
				Find(&affected).Error; err != nil {
				return err
			}
			if len(affected) > 0 {
				if err := tx.Model(&models.HitcherRequest{}).
					Where("ride_id = ? AND status = ?", ride.ID, models.RequestStatusAccepted).
					Update("status", models.RequestStatusCancelledByDriver).Error; err != nil {
					return err
				}
				// One penalty for the driver regardless of how many hitchers
				// were confirmed.
				if _, _, err := ledger.Penalize(tx, driverID, ride.ID,
					models.RoleDriver, reliability.ActionCancelAccepted); err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			if isStateError(txErr) {
				respondStateError(c, txErr, ride.Status, "")
				return
			}
			c.JSON(500, gin.H{"error": "Failed to cancel ride"})
			return
		}

		// Side effects only after the transition committed.
		ctx := context.Background()
		services.SetRideStatusCache(ctx, ride.ID, ride.Status, ride.AvailableSeats)
		services.PublishRideUpdate(ctx, ride.ID, services.EventRideCancelled, map[string]interface{}{
			"driverId": driverID,
		})

		driverName := ""
		if ride.Driver != nil {
			driverName = ride.Driver.Username
		}
		for _, req := range affected {
			hub.SendEvent(req.HitcherID, services.EventRideCancelled, gin.H{
				"rideId": ride.ID,
				"reason": "Driver cancelled the ride",
			})
			var hitcher models.User
			if err := db.First(&hitcher, req.HitcherID).Error; err == nil && hitcher.FCMToken != "" {
				go services.SendRideCancelledNotification(ctx, hitcher.FCMToken, ride.ID, driverName)
			}
		}

		c.JSON(200, gin.H{
			"message":    "Ride cancelled",
			"rideId":     ride.ID,
			"rideStatus": ride.Status,
		})
	}
}
