package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitialReliabilityRate is the score every new role profile starts with.
const InitialReliabilityRate = 100.0

type User struct {
	gorm.Model
	Username     string `gorm:"column:username;unique;not null" json:"username"`
	Email        string `gorm:"column:email;unique;not null" json:"email"`
	Password     string `gorm:"-:migration" json:"-"` // Temporary field for password handling
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	PhoneNumber  string `gorm:"column:phone_number" json:"phoneNumber"`
	FCMToken     string `gorm:"column:fcm_token" json:"-"`

	DriverProfile  *DriverProfile  `json:"driverProfile,omitempty" gorm:"foreignKey:UserID"`
	HitcherProfile *HitcherProfile `json:"hitcherProfile,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// DriverProfile holds the driver side of a user: vehicle details and the
// driver's reliability history. A user may hold a driver profile, a hitcher
// profile, or both.
type DriverProfile struct {
	gorm.Model
	UserID          uint    `json:"userId" gorm:"not null;uniqueIndex"`
	CarMake         string  `json:"carMake" gorm:"column:car_make"`
	CarModel        string  `json:"carModel" gorm:"column:car_model"`
	CarPlate        string  `json:"carPlate" gorm:"column:car_plate"`
	CarPhotoURL     string  `json:"carPhotoUrl" gorm:"column:car_photo_url"`
	SeatCount       int     `json:"seatCount" gorm:"not null;default:4"`
	ReliabilityRate float64 `json:"reliabilityRate" gorm:"not null;default:100"`
	CompletedTrips  int     `json:"completedTrips" gorm:"not null;default:0"`
	User            *User   `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (DriverProfile) TableName() string {
	return "driver_profiles"
}

// HitcherProfile holds the passenger side of a user. DistanceToCollege is the
// precomputed commute distance in kilometers used for fare computation; route
// calculation itself lives in the maps collaborator, not here.
type HitcherProfile struct {
	gorm.Model
	UserID            uint    `json:"userId" gorm:"not null;uniqueIndex"`
	DistanceToCollege float64 `json:"distanceToCollege" gorm:"not null;default:0"`
	DefaultPickup     string  `json:"defaultPickup" gorm:"column:default_pickup"`
	DefaultDropoff    string  `json:"defaultDropoff" gorm:"column:default_dropoff"`
	ReliabilityRate   float64 `json:"reliabilityRate" gorm:"not null;default:100"`
	CompletedTrips    int     `json:"completedTrips" gorm:"not null;default:0"`
	User              *User   `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (HitcherProfile) TableName() string {
	return "hitcher_profiles"
}
