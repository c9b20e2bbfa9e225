package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arunbonal/RideShare-sub000/internal/models"
)

// ResolveAndPersistRideStatus applies the time-driven status transition for
// one ride, exactly once. The guarded update means concurrent resolvers (a
// read path racing the sweeper) cannot double-apply: whoever loses the
// status check simply sees no rows affected. On completion the driver's and
// each accepted hitcher's completed-trip counters are bumped in the same
// transaction.
func ResolveAndPersistRideStatus(db *gorm.DB, ride *models.Ride, now time.Time) (bool, error) {
	resolved := models.ResolveStatus(ride, now)
	if resolved == ride.Status {
		return false, nil
	}

	previous := ride.Status
	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Ride{}).
			Where("id = ? AND status = ?", ride.ID, previous).
			Update("status", resolved)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Another resolver got there first.
			return nil
		}
		changed = true

		if resolved != models.RideStatusCompleted {
			return nil
		}
		if err := tx.Model(&models.DriverProfile{}).
			Where("user_id = ?", ride.DriverID).
			Update("completed_trips", gorm.Expr("completed_trips + 1")).Error; err != nil {
			return err
		}
		for i := range ride.HitcherRequests {
			req := &ride.HitcherRequests[i]
			if req.Status != models.RequestStatusAccepted {
				continue
			}
			if err := tx.Model(&models.HitcherProfile{}).
				Where("user_id = ?", req.HitcherID).
				Update("completed_trips", gorm.Expr("completed_trips + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	ride.Status = resolved

	ctx := context.Background()
	SetRideStatusCache(ctx, ride.ID, ride.Status, ride.AvailableSeats)
	PublishRideUpdate(ctx, ride.ID, EventRideStatusChanged, map[string]interface{}{
		"from": previous,
		"to":   resolved,
	})
	return true, nil
}

// SweepRideStatuses resolves every non-terminal ride whose date has arrived.
// There is no ordering requirement between rides; each transition is
// independent and idempotent.
func SweepRideStatuses(db *gorm.DB, now time.Time) error {
	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	var rides []models.Ride
	if err := db.Preload("HitcherRequests").
		Where("status IN (?) AND date <= ?",
			[]string{models.RideStatusScheduled, models.RideStatusInProgress}, endOfToday).
		Find(&rides).Error; err != nil {
		return err
	}

	for i := range rides {
		if _, err := ResolveAndPersistRideStatus(db, &rides[i], now); err != nil {
			log.WithError(err).WithField("rideId", rides[i].ID).Error("Failed to resolve ride status")
		}
	}
	return nil
}

// RunStatusSweeper runs the sweep on a fixed interval until ctx is done.
// The sweep is a safety net: every read path also resolves lazily, so a
// missed tick only delays the visible transition.
func RunStatusSweeper(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := SweepRideStatuses(db, time.Now()); err != nil {
				log.WithError(err).Error("Ride status sweep failed")
			}
		}
	}
}
