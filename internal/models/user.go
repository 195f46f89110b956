package models

import (
	"time"
)

// User represents a user in the system. Only the fields the payment
// subsystem needs are modeled here; profile management lives elsewhere.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	MSISDN       string    `bson:"msisdn" json:"msisdn"`
	Role         string    `bson:"role" json:"role"`
	IsActive     bool      `bson:"isActive" json:"isActive"`
	LastActivity time.Time `bson:"lastActivity,omitempty" json:"lastActivity,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
