package models

import (
	"gorm.io/gorm"
)

// ReliabilityAdjustment records one applied reliability delta, keyed by
// (user, ride, role, action). The unique index is the dedupe check that keeps
// a retried cancel or no-show report from double-penalizing.
type ReliabilityAdjustment struct {
	gorm.Model
	UserID  uint    `json:"userId" gorm:"not null;uniqueIndex:idx_user_ride_action"`
	RideID  uint    `json:"rideId" gorm:"not null;uniqueIndex:idx_user_ride_action"`
	Role    string  `json:"role" gorm:"not null;uniqueIndex:idx_user_ride_action"`
	Action  string  `json:"action" gorm:"not null;uniqueIndex:idx_user_ride_action"`
	Penalty float64 `json:"penalty" gorm:"not null"`
	OldRate float64 `json:"oldRate" gorm:"not null"`
	NewRate float64 `json:"newRate" gorm:"not null"`
}

// TableName specifies the table name
func (ReliabilityAdjustment) TableName() string {
	return "reliability_adjustments"
}

// Role constants for reliability adjustments.
const (
	RoleDriver  = "driver"
	RoleHitcher = "hitcher"
)
