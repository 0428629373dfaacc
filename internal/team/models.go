package team

import (
	"time"

	"github.com/snagtrack/snagtrack/internal/auth"
)

// Team is a billing and membership boundary.
type Team struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	LogoKey          string    `json:"-"`
	Plan             string    `json:"plan"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Member is a user's membership row in a team.
type Member struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	UserID    string    `json:"userId"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invite is a single-use, time-limited membership grant.
type Invite struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Code      string    `json:"code"`
	Role      auth.Role `json:"role"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the invite's validity window has passed at t.
func (i *Invite) Expired(t time.Time) bool {
	return t.After(i.ExpiresAt)
}

// CreateTeamInput holds the fields required to create a team.
type CreateTeamInput struct {
	Name    string `json:"name"`
	LogoKey string `json:"-"`
}

// UpdateTeamInput holds optional fields for a partial team update.
type UpdateTeamInput struct {
	Name             *string `json:"name,omitempty"`
	LogoKey          *string `json:"-"`
	Plan             *string `json:"plan,omitempty"`
	StripeCustomerID *string `json:"-"`
}
