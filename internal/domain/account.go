package domain

import "time"

// User is a customer account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}

// Provider is a service provider account.
type Provider struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	ICNumber     string    `json:"-"`
	Phone        string    `json:"phone"`
	ProfileImage *string   `json:"profile_image"`
	IsVerified   bool      `json:"is_verified"`
	Rating       float64   `json:"rating"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}

// Registration carries the fields common to both sign-up forms. ICNumber is
// only used for providers.
type Registration struct {
	Email        string
	Password     string
	Name         string
	Phone        string
	ICNumber     string
	ProfileImage *string
}

// AuthToken is returned by register and login.
type AuthToken struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	UserID      int64       `json:"user_id"`
	UserType    AccountKind `json:"user_type"`
}

// Profile is the caller's own account as returned by /api/me. The provider
// fields are omitted for users.
type Profile struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	ProfileImage *string     `json:"profile_image"`
	Type         AccountKind `json:"type"`
	IsVerified   *bool       `json:"is_verified,omitempty"`
	Rating       *float64    `json:"rating,omitempty"`
	Points       *int        `json:"points,omitempty"`
}

// UserProfile builds the profile of u.
func UserProfile(u *User) *Profile {
	return &Profile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Phone:        u.Phone,
		ProfileImage: u.ProfileImage,
		Type:         KindUser,
	}
}

// ProviderProfile builds the profile of p.
func ProviderProfile(p *Provider) *Profile {
	return &Profile{
		ID:           p.ID,
		Email:        p.Email,
		Name:         p.Name,
		Phone:        p.Phone,
		ProfileImage: p.ProfileImage,
		Type:         KindProvider,
		IsVerified:   &p.IsVerified,
		Rating:       &p.Rating,
		Points:       &p.Points,
	}
}
