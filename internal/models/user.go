package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is a platform account that can own a side of an engagement.
// Only identity fields live here; profile, rating and payment data are
// owned by other services.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	DisplayName string         `gorm:"type:text;not null" json:"display_name"`
	Role        string         `gorm:"type:text;not null" json:"role"` // "client" or "freelancer"
	Skills      pq.StringArray `gorm:"type:text[]" json:"skills,omitempty"`
}

// BeforeCreate generates a new UUID for the user if ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
