// Package model defines domain entities for the application.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a registered marketplace account.
// The password digest is stored under "password" to stay compatible with
// documents written by earlier versions of the service.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string        `bson:"email" json:"email"`
	FirstName    string        `bson:"firstName" json:"firstName"`
	LastName     string        `bson:"lastName" json:"lastName"`
	PasswordHash string        `bson:"password" json:"-"` // Never serialize
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    *time.Time    `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// IDString returns the hex form of the store-generated identifier.
// This is the value carried in issued tokens.
func (u *User) IDString() string {
	if u.ID.IsZero() {
		return ""
	}
	return u.ID.Hex()
}
