// Package reliability adjusts a user's reliability rate in response to
// cancellations and no-shows. The rate is a 0-100 score per role profile;
// only broken commitments (accepted requests) move it.
package reliability

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/arunbonal/RideShare-sub000/internal/models"
)

// Action identifies what the user did to an accepted or pending commitment.
type Action string

const (
	// ActionCancelPending withdraws a request nobody was counting on yet.
	ActionCancelPending Action = "cancel-pending"
	// ActionCancelAccepted breaks an accepted commitment before departure.
	ActionCancelAccepted Action = "cancel-accepted"
	// ActionNoShow is failing to appear for an accepted, non-cancelled ride.
	ActionNoShow Action = "no-show"
	// ActionAutoCancel is a cascade-induced cancellation; policy-neutral.
	ActionAutoCancel Action = "auto-cancel"
)

// DefaultBasePenalty is the fallback when RELIABILITY_BASE_PENALTY is unset.
// The exact magnitude is a business constant, not a structural invariant.
const DefaultBasePenalty = 5.0

// Penalty returns the percentage-point deduction for an action. A no-show
// costs double a cancellation by explicit product rule; withdrawing a
// still-pending request and cascade cancellations cost nothing.
func Penalty(action Action, base float64) float64 {
	switch action {
	case ActionCancelAccepted:
		return base
	case ActionNoShow:
		return 2 * base
	default:
		return 0
	}
}

// Apply computes the post-action rate, clamped to [0, 100].
func Apply(current float64, action Action, base float64) float64 {
	return clamp(current-Penalty(action, base), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseAction validates an action string from an API caller.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCancelPending, ActionCancelAccepted, ActionNoShow, ActionAutoCancel:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown reliability action %q", s)
}

// Ledger persists reliability adjustments idempotently. All writes go through
// the caller's transaction so the rate change commits atomically with the
// state transition that caused it.
type Ledger struct {
	Base float64
}

// NewLedgerFromEnv reads the base penalty from RELIABILITY_BASE_PENALTY.
func NewLedgerFromEnv() Ledger {
	base := DefaultBasePenalty
	if v := os.Getenv("RELIABILITY_BASE_PENALTY"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			base = parsed
		}
	}
	return Ledger{Base: base}
}

// Preview projects the post-action rate without committing anything.
func (l Ledger) Preview(current float64, action Action) float64 {
	return Apply(current, action, l.Base)
}

// Penalize applies the action's penalty to the user's role profile, exactly
// once per (user, ride, role, action). A retry finds the existing adjustment
// row and reports applied=false with the rate already on record. Zero-penalty
// actions never touch the ledger at all.
func (l Ledger) Penalize(tx *gorm.DB, userID, rideID uint, role string, action Action) (bool, float64, error) {
	penalty := Penalty(action, l.Base)
	if penalty == 0 {
		return false, 0, nil
	}

	var existing models.ReliabilityAdjustment
	err := tx.Where("user_id = ? AND ride_id = ? AND role = ? AND action = ?",
		userID, rideID, role, string(action)).First(&existing).Error
	if err == nil {
		return false, existing.NewRate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, 0, err
	}

	current, err := l.currentRate(tx, userID, role)
	if err != nil {
		return false, 0, err
	}
	newRate := clamp(current-penalty, 0, 100)

	adjustment := models.ReliabilityAdjustment{
		UserID:  userID,
		RideID:  rideID,
		Role:    role,
		Action:  string(action),
		Penalty: penalty,
		OldRate: current,
		NewRate: newRate,
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		return false, 0, err
	}
	if err := l.setRate(tx, userID, role, newRate); err != nil {
		return false, 0, err
	}
	return true, newRate, nil
}

// CurrentRate reads the reliability rate on the user's role profile.
func (l Ledger) CurrentRate(db *gorm.DB, userID uint, role string) (float64, error) {
	return l.currentRate(db, userID, role)
}

func (l Ledger) currentRate(tx *gorm.DB, userID uint, role string) (float64, error) {
	if role == models.RoleDriver {
		var profile models.DriverProfile
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			return 0, fmt.Errorf("driver profile for user %d: %w", userID, err)
		}
		return profile.ReliabilityRate, nil
	}
	var profile models.HitcherProfile
	if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return 0, fmt.Errorf("hitcher profile for user %d: %w", userID, err)
	}
	return profile.ReliabilityRate, nil
}

func (l Ledger) setRate(tx *gorm.DB, userID uint, role string, rate float64) error {
	if role == models.RoleDriver {
		return tx.Model(&models.DriverProfile{}).
			Where("user_id = ?", userID).
			Update("reliability_rate", rate).Error
	}
	return tx.Model(&models.HitcherProfile{}).
		Where("user_id = ?", userID).
		Update("reliability_rate", rate).Error
}
