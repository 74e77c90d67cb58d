package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles.
const (
	RolePatient = "patient"
	RoleDonor   = "donor"
)

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"size:255;not null" json:"name"`
	Email            string     `gorm:"size:255;not null;unique" json:"email"`
	Password         string     `gorm:"size:255;not null" json:"-"`
	Role             string     `gorm:"size:20;not null;default:'patient';index" json:"role"`
	Phone            string     `gorm:"size:20" json:"phone"`
	Hospital         string     `gorm:"size:255" json:"hospital"`
	BloodGroup       string     `gorm:"size:3;index" json:"blood_group"`
	Location         string     `gorm:"size:255" json:"location"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	IsAvailable      bool       `gorm:"default:true" json:"is_available"`
	TotalDonations   int        `gorm:"default:0" json:"total_donations"`
	LastDonationAt   *time.Time `json:"last_donation_at,omitempty"`
	ProfileCompleted bool       `gorm:"default:false" json:"profile_completed"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasCoordinates reports whether the user has a location fix on file.
// Donors without one fall back to text-based matching.
func (u *User) HasCoordinates() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// BeforeSave hashes the password before saving to the database
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// ValidatePassword checks if the provided password matches the stored hash
func (u *User) ValidatePassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}
