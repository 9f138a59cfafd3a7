package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor roles. Assigned at registration, immutable afterwards.
const (
	RoleBuyer   = "buyer"
	RoleSeller  = "seller"
	RoleCourier = "courier"
	RoleAdmin   = "admin"
)

// User is an authenticated actor with their profile. Bank fields are filled
// in by sellers and shown to buyers as manual payment instructions.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"passwordHash" json:"-"`
	Name          string             `bson:"name" json:"name"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role          string             `bson:"role" json:"role"`
	BankName      string             `bson:"bankName,omitempty" json:"bankName,omitempty"`
	AccountNumber string             `bson:"accountNumber,omitempty" json:"accountNumber,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidRole reports whether role may be chosen at registration. Admin
// accounts are provisioned out of band, never self-assigned.
func ValidRole(role string) bool {
	return role == RoleBuyer || role == RoleSeller || role == RoleCourier
}
