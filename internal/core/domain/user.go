package domain

import "time"

// User mirrors the persisted representation in the users table.
//
// Invite and reset tokens are stored as SHA-256 hashes of the random value
// that was mailed out; the raw token never touches the database.
type User struct {
	ID                 string
	Email              string
	Username           string
	FirstName          string
	LastName           string
	Address            string
	PasswordHash       string
	Activated          bool
	InviteTokenHash    *string
	InviteTokenExpires *time.Time
	ResetTokenHash     *string
	ResetTokenExpires  *time.Time
	CreatedAt          time.Time
	LastPasswordChange *time.Time
}

// NewUserParams carries the caller-supplied fields for account creation.
type NewUserParams struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Address   string
}

// ProfileUpdate carries the mutable profile fields for an existing account.
// Password is the plaintext replacement and is always re-hashed on update.
type ProfileUpdate struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Address   string
}
