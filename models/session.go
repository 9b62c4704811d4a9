package models

import (
	"encoding/json"
	"strings"
)

// Role identifies which side of the marketplace an account acts for.
type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role string. Empty strings and the literal
// "undefined"/"null" values left behind by broken writers are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(s)) {
	case RoleUser:
		return RoleUser, true
	case RoleProvider:
		return RoleProvider, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// LoginPath is the login screen for accounts of this role.
func (r Role) LoginPath() string {
	if r == "" {
		return "/login/user"
	}
	return "/login/" + string(r)
}

// User is the account summary returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Role    Role   `json:"role"`
	Blocked bool   `json:"blocked,omitempty"`
}

// UnmarshalJSON accepts both "id" and Mongo style "_id".
func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.alias)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	return nil
}

// Registration is the POST /auth/register body. Provider accounts also carry
// their service profile.
type Registration struct {
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Password    string       `json:"password"`
	Role        Role         `json:"role"`
	Phone       string       `json:"phone,omitempty"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
	Languages   []string     `json:"languages,omitempty"`
	ServiceArea *Coordinates `json:"coordinates,omitempty"`
}

// Session is the acting identity. A Session value is always complete: token,
// user and role are all set.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
	Role         Role   `json:"role"`
}

// PersistedSession mirrors the four storage keys. Fields are raw strings
// because storage may contain anything, including partial writes.
type PersistedSession struct {
	Token        string
	RefreshToken string
	User         string
	Role         string
}

// Empty reports whether nothing at all is stored.
func (p PersistedSession) Empty() bool {
	return p.Token == "" && p.RefreshToken == "" && p.User == "" && p.Role == ""
}

// LoginResponse is the normalized /auth/login payload. Raw keeps the server
// body as received.
type LoginResponse struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	User         User            `json:"user"`
	Role         Role            `json:"role"`
	Raw          json.RawMessage `json:"-"`
}
