package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID        string
	UserID         string
	Username       string
	Email          string
	RegisteredAt   time.Time
	TicketGated    bool
	EmailDelivered bool
}

// UserValidatedEvent represents the payload for auth.user.validated messages.
type UserValidatedEvent struct {
	EventID     string
	UserID      string
	ValidatedAt time.Time
}

// PasswordChangedEvent represents the payload for auth.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Checked   bool
}

// RecoveryIssuedEvent represents the payload for auth.user.recovery.issued messages.
type RecoveryIssuedEvent struct {
	EventID        string
	UserID         string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	MaskedEmail    string
	EmailDelivered bool
}

// UserStatusChangedEvent represents the payload for auth.user.status.changed messages.
// Change is one of activated, deactivated, promoted, demoted or deleted.
type UserStatusChangedEvent struct {
	EventID   string
	UserID    string
	Change    string
	ChangedAt time.Time
}
