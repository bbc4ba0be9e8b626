package domain

import "time"

// UserCreatedEvent represents the payload for portal.user.created messages.
type UserCreatedEvent struct {
	EventID        string
	UserID         string
	Username       string
	Email          string
	CreatedAt      time.Time
	ActivationSent bool
	Metadata       map[string]any
}

// PasswordChangedEvent represents the payload for portal.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	ChangedBy string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent represents the payload for portal.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// AccountActivatedEvent represents the payload for portal.user.activated messages.
type AccountActivatedEvent struct {
	EventID     string
	UserID      string
	ActivatedAt time.Time
	Metadata    map[string]any
}
