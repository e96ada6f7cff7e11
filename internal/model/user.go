package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role controls what a user may do in the client.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTechnician || r == RoleViewer
}

// PasswordCost is the bcrypt cost used for new password hashes.
var PasswordCost = bcrypt.DefaultCost

// User is an account. PasswordHash is a bcrypt hash and travels with the
// document so that clients can authenticate while offline.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Created      time.Time `json:"created"`
}

// UserView is a user without credentials, as returned by the user endpoints.
type UserView struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Created  time.Time `json:"created"`
}

// View strips the credentials from u.
func (u *User) View() UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Created:  u.Created,
	}
}

// SetPassword replaces the stored hash with a fresh salted hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// NewUser is the create payload for a user.
type NewUser struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// UserUpdate is a tagged partial update. Password is rehashed when set.
type UserUpdate struct {
	Username Opt[string] `json:"username,omitzero"`
	Password Opt[string] `json:"password,omitzero"`
	Name     Opt[string] `json:"name,omitzero"`
	Email    Opt[string] `json:"email,omitzero"`
	Role     Opt[Role]   `json:"role,omitzero"`
}
