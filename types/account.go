package types

import "time"

// Account represents a registered user of the country explorer.
// It carries identity, the hashed credential and the user's favorites.
type Account struct {
	// ID is the unique identifier assigned by storage on creation.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address; it is the login key.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Favorites is the set of 3-letter country codes the user marked.
	// It is kept in insertion order but callers must not rely on order.
	Favorites []string `json:"favorites" db:"favorites"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasFavorite reports whether code is already in the favorites set.
func (a Account) HasFavorite(code string) bool {
	for _, existing := range a.Favorites {
		if existing == code {
			return true
		}
	}
	return false
}
