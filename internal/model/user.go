package model

import "time"

// Role is the account capability level. Admin implies paid-equivalent access
// plus the admin routes.
type Role string

const (
	RoleFree  Role = "free"
	RolePaid  Role = "paid"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFree || r == RolePaid || r == RoleAdmin
}

// Settings are the per-user display preferences, created with defaults on
// first sign-in.
type Settings struct {
	Theme    string `json:"theme"`
	FontSize int    `json:"fontSize"`
}

// DefaultSettings returns the settings assigned to a freshly created profile.
func DefaultSettings() Settings {
	return Settings{Theme: "light", FontSize: 14}
}

// User is a profile document. IsAdmin is a legacy mirror of Role == RoleAdmin
// kept for consumers that still read the boolean; SetRole is the only place
// that writes either field, which keeps the invariant that they never
// disagree.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
	ProfileURL  string   `json:"profileUrl,omitempty"`
	Role        Role     `json:"role"`
	IsAdmin     bool     `json:"isAdmin"`
	Settings    Settings `json:"settings"`

	// PasswordHash is never serialized. Empty for OAuth-only accounts.
	PasswordHash string `json:"-"`

	// Temporary premium grants paid-equivalent capability until the expiry
	// (epoch millis) passes.
	TemporaryPremiumAccess bool  `json:"temporaryPremiumAccess,omitempty"`
	TemporaryPremiumExpiry int64 `json:"temporaryPremiumExpiry,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetRole updates the role and keeps the legacy isAdmin mirror in lockstep.
func (u *User) SetRole(r Role) {
	u.Role = r
	u.IsAdmin = r == RoleAdmin
}

// HasPremiumAccess reports whether the user currently has paid-equivalent
// capability: a paid or admin role, or an unexpired temporary grant.
func (u *User) HasPremiumAccess(now time.Time) bool {
	if u.Role == RolePaid || u.Role == RoleAdmin {
		return true
	}
	if u.TemporaryPremiumAccess && now.UnixMilli() < u.TemporaryPremiumExpiry {
		return true
	}
	return false
}
