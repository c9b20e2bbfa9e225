package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arunbonal/RideShare-sub000/internal/models"
	"github.com/arunbonal/RideShare-sub000/internal/services"
)

// GetProfile returns the calling user with whichever role profiles they hold.
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var user models.User
		if err := db.Preload("DriverProfile").Preload("HitcherProfile").
			First(&user, userID).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		if user.DriverProfile != nil {
			user.DriverProfile.CarPhotoURL = services.GetImageURL(user.DriverProfile.CarPhotoURL)
		}
		c.JSON(200, user)
	}
}

// UpsertDriverProfile creates or updates the caller's driver profile. The
// reliability rate and trip counters are owned by the ledger and the status
// resolver, so client input never touches them.
func UpsertDriverProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			CarMake   string `json:"carMake" binding:"required"`
			CarModel  string `json:"carModel" binding:"required"`
			CarPlate  string `json:"carPlate" binding:"required"`
			SeatCount int    `json:"seatCount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if input.SeatCount < models.MinSeats || input.SeatCount > models.MaxSeats {
			c.JSON(400, gin.H{"error": "Seat count must be between 1 and 6"})
			return
		}

		profile := models.DriverProfile{
			UserID:          userID,
			CarMake:         input.CarMake,
			CarModel:        input.CarModel,
			CarPlate:        input.CarPlate,
			SeatCount:       input.SeatCount,
			ReliabilityRate: models.InitialReliabilityRate,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"car_make", "car_model", "car_plate", "seat_count"}),
		}).Create(&profile).Error
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to save driver profile"})
			return
		}

		var saved models.DriverProfile
		if err := db.Where("user_id = ?", userID).First(&saved).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to load driver profile"})
			return
		}
		saved.CarPhotoURL = services.GetImageURL(saved.CarPhotoURL)
		c.JSON(200, saved)
	}
}

// UploadVehiclePhoto stores the driver's vehicle photo and records its path
// on the profile.
func UploadVehiclePhoto(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var profile models.DriverProfile
		if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			c.JSON(403, gin.H{"error": "Driver profile required"})
			return
		}

		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(400, gin.H{"error": "No photo file provided"})
			return
		}

		path, err := services.UploadImage(file, "vehicles")
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload photo"})
			return
		}

		if err := db.Model(&profile).Update("car_photo_url", path).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to save photo"})
			return
		}

		c.JSON(200, gin.H{"carPhotoUrl": services.GetImageURL(path)})
	}
}

// UpsertHitcherProfile creates or updates the caller's hitcher profile.
// DistanceToCollege is the precomputed commute distance fed into fare
// computation on every seat request.
func UpsertHitcherProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		var input struct {
			DistanceToCollege float64 `json:"distanceToCollege" binding:"required"`
			DefaultPickup     string  `json:"defaultPickup"`
			DefaultDropoff    string  `json:"defaultDropoff"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if input.DistanceToCollege <= 0 {
			c.JSON(400, gin.H{"error": "Distance to college must be positive"})
			return
		}

		profile := models.HitcherProfile{
			UserID:            userID,
			DistanceToCollege: input.DistanceToCollege,
			DefaultPickup:     input.DefaultPickup,
			DefaultDropoff:    input.DefaultDropoff,
			ReliabilityRate:   models.InitialReliabilityRate,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"distance_to_college", "default_pickup", "default_dropoff"}),
		}).Create(&profile).Error
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to save hitcher profile"})
			return
		}

		var saved models.HitcherProfile
		if err := db.Where("user_id = ?", userID).First(&saved).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to load hitcher profile"})
			return
		}
		c.JSON(200, saved)
	}
}
