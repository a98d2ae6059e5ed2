package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// Profile is one per authenticated identity. A store is a profile with a store name.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	StoreName   *string   `json:"store_name,omitempty"`
	StoreNumber *string   `json:"store_number,omitempty"`
	StoreImage  *string   `json:"store_image,omitempty"`
	Role        Role      `json:"role"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Profile) HasPhone() bool {
	return p.PhoneNumber != nil && *p.PhoneNumber != ""
}

func (p *Profile) IsStore() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}

// Identity is the authenticated caller as reported by the auth provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ProfileUpdate carries self-service changes; nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	StoreName   *string `json:"store_name,omitempty"`
	StoreNumber *string `json:"store_number,omitempty"`
	StoreImage  *string `json:"store_image,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Session is what the auth provider hands back after a successful sign-in.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         Identity `json:"user"`
}
