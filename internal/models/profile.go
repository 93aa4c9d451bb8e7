package models

import (
	"strings"
	"time"
)

const (
	DefaultSubscriptionTier = "free"
	DefaultCreditBalance    = 10
)

type Profile struct {
	UserID           int64     `json:"user_id" db:"user_id"`
	DisplayName      *string   `json:"display_name,omitempty" db:"display_name"`
	AvatarURL        *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio              *string   `json:"bio,omitempty" db:"bio"`
	Website          *string   `json:"website,omitempty" db:"website"`
	Location         *string   `json:"location,omitempty" db:"location"`
	SubscriptionTier string    `json:"subscription_tier" db:"subscription_tier"`
	CreditBalance    int       `json:"credit_balance" db:"credit_balance"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AuthUser is the projection served to clients: account identity merged with
// the optional profile row. ID and Email are always populated.
type AuthUser struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"display_name"`
	AvatarURL        string     `json:"avatar_url,omitempty"`
	Bio              string     `json:"bio,omitempty"`
	Website          string     `json:"website,omitempty"`
	Location         string     `json:"location,omitempty"`
	SubscriptionTier string     `json:"subscription_tier"`
	CreditBalance    int        `json:"credit_balance"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// ProjectAuthUser merges a user row with its optional profile row. A missing
// profile (or missing profile fields) falls back to safe defaults instead of
// leaving holes in the projection.
func ProjectAuthUser(user *User, profile *Profile) *AuthUser {
	au := &AuthUser{
		ID:               user.ID,
		Email:            user.Email,
		DisplayName:      displayNameFromEmail(user.Email),
		SubscriptionTier: DefaultSubscriptionTier,
		CreditBalance:    DefaultCreditBalance,
		LastLoginAt:      user.LastLoginAt,
	}

	if profile == nil {
		return au
	}

	if profile.DisplayName != nil && strings.TrimSpace(*profile.DisplayName) != "" {
		au.DisplayName = *profile.DisplayName
	}
	if profile.AvatarURL != nil {
		au.AvatarURL = *profile.AvatarURL
	}
	if profile.Bio != nil {
		au.Bio = *profile.Bio
	}
	if profile.Website != nil {
		au.Website = *profile.Website
	}
	if profile.Location != nil {
		au.Location = *profile.Location
	}
	if profile.SubscriptionTier != "" {
		au.SubscriptionTier = profile.SubscriptionTier
	}
	if profile.CreditBalance >= 0 {
		au.CreditBalance = profile.CreditBalance
	}

	return au
}

func displayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
