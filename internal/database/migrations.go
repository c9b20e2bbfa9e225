package database

import (
	"gorm.io/gorm"

	"github.com/arunbonal/RideShare-sub000/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.DriverProfile{},
		&models.HitcherProfile{},
		&models.Ride{},
		&models.HitcherRequest{},
		&models.ReliabilityAdjustment{},
	)
	if err != nil {
		return err
	}

	// One offered ride per driver per date and direction, cancelled rides
	// excluded so a driver can re-offer after cancelling.
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_driver_date_direction
		ON rides (driver_id, date, direction)
		WHERE status <> 'cancelled' AND deleted_at IS NULL`)

	// Seat inventory can never go negative regardless of application bugs.
	db.Exec(`ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_available_seats_check`)
	db.Exec(`ALTER TABLE rides ADD CONSTRAINT rides_available_seats_check CHECK (available_seats >= 0)`)

	return nil
}
