package domain

import "time"

// User is a registered account together with the Oura credentials the data
// endpoints call the provider with.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	OuraToken    string    `json:"ouraToken,omitempty"`
	OuraRefresh  string    `json:"ouraRefresh,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
