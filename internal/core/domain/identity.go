package domain

import "time"

// UserType distinguishes standard accounts from administrators.
type UserType int

const (
	UserTypeStandard UserType = 0
	UserTypeAdmin    UserType = 1
)

// String returns a stable label for logs and API payloads.
func (t UserType) String() string {
	switch t {
	case UserTypeAdmin:
		return "admin"
	default:
		return "standard"
	}
}

// User mirrors the persisted representation in the users table.
// Credentials live in Method records, never on the user itself.
type User struct {
	ID         string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	Type       UserType
	Active     bool
	Validated  bool
	LastAccess *time.Time
	Created    time.Time
	Modified   time.Time
}

// Persisted reports whether the user has been stored and carries an identity.
func (u *User) Persisted() bool {
	return u != nil && u.ID != ""
}

// IsAdmin reports whether the user holds the admin type.
func (u User) IsAdmin() bool {
	return u.Type == UserTypeAdmin
}

// MustBePersisted panics with a PreconditionError when the user is nil or unsaved.
// Operations on an unsaved user indicate a caller bug, not bad input.
func MustBePersisted(u *User, operation string) {
	if !u.Persisted() {
		panic(PreconditionError{Operation: operation, Reason: "user must be persisted"})
	}
}

// MethodKind enumerates the authentication methods bound to a user.
type MethodKind int

const (
	MethodPassword         MethodKind = 0
	MethodValidationTicket MethodKind = 1
	MethodRecoveryTicket   MethodKind = 2
	MethodOathKey          MethodKind = 3
)

// String returns the label used in logs and metrics.
func (k MethodKind) String() string {
	switch k {
	case MethodPassword:
		return "password"
	case MethodValidationTicket:
		return "validation_ticket"
	case MethodRecoveryTicket:
		return "recovery_ticket"
	case MethodOathKey:
		return "oath_key"
	default:
		return "unknown"
	}
}

// MethodStatus captures the availability of a method.
type MethodStatus int

const (
	MethodInactive MethodStatus = 0
	MethodActive   MethodStatus = 1
)

// Login chain steps.
const (
	StepNone   = 0
	StepFirst  = 1
	StepSecond = 2
)

// Method is one credential or ticket owned by a user.
// PasswordHash is set only for MethodPassword; Ticket for every other kind.
type Method struct {
	ID           string
	UserID       string
	Kind         MethodKind
	PasswordHash string
	Ticket       string
	Step         int
	Status       MethodStatus
	Created      time.Time
	Updated      time.Time
	LastUsed     *time.Time
	Expiration   *time.Time
}

// IsActive reports whether the method may still be used.
func (m Method) IsActive() bool {
	return m.Status == MethodActive
}

// Expired reports whether the method has passed its expiration.
// Methods without an expiration never expire.
func (m Method) Expired(at time.Time) bool {
	if m.Expiration == nil {
		return false
	}
	return at.After(*m.Expiration)
}

// MarkUsed records the moment the method was used.
func (m *Method) MarkUsed(at time.Time) {
	timeCopy := at
	m.LastUsed = &timeCopy
	m.Updated = at
}

// PasswordContext carries user inputs the strength policy should penalise.
type PasswordContext struct {
	Username string
	Email    string
}
