package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a training profile. Profiles are open unless a PIN was set.
type User struct {
	ID        int    `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:64"`
	PINHash   string
	CreatedAt time.Time
	LastSeen  time.Time
}

func (u *User) HasPIN() bool { return u.PINHash != "" }

// CheckPIN reports whether pin unlocks the profile. Open profiles accept
// any input.
func (u *User) CheckPIN(pin string) bool {
	if !u.HasPIN() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(pin)) == nil
}
