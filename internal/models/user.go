package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// Role is one of the roles a user may hold.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

// HostOnboarding is the metadata recorded when a user completes host onboarding.
type HostOnboarding struct {
	Completed      bool       `bson:"completed" json:"completed"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	PropertyType   string     `bson:"property_type,omitempty" json:"property_type,omitempty"`
	HostingGoal    string     `bson:"hosting_goal,omitempty" json:"hosting_goal,omitempty"`
	PhotoKey       string     `bson:"photo_key,omitempty" json:"photo_key,omitempty"` // S3 key
	AgreedPolicies bool       `bson:"agreed_policies" json:"agreed_policies"`
}

// User represents a user in the system. Identity itself lives with the
// external identity provider; this document carries roles, wallet and
// onboarding state.
type User struct {
	Base           `bson:",inline"`
	Name           string          `bson:"name" json:"name"`
	Email          string          `bson:"email" json:"email"`
	PhotoURL       string          `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Roles          []Role          `bson:"roles" json:"roles"`
	IsAdmin        bool            `bson:"is_admin" json:"is_admin"`
	WalletBalance  float64         `bson:"wallet_balance" json:"wallet_balance"`
	Transactions   []Transaction   `bson:"transactions" json:"transactions"` // newest first
	PaypalEmail    string          `bson:"paypal_email,omitempty" json:"paypal_email,omitempty"`
	HostOnboarding *HostOnboarding `bson:"host_onboarding,omitempty" json:"host_onboarding,omitempty"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserProfile is the public subset of a user shown to counterparties.
type UserProfile struct {
	ID       utils.SixID `bson:"_id" json:"id"`
	Name     string      `bson:"name" json:"name"`
	Email    string      `bson:"email,omitempty" json:"email,omitempty"`
	PhotoURL string      `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
}
