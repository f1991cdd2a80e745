package domain

// Feature flag tags consulted by the auth engine.
const (
	FlagNewUsers  = "new-users"
	FlagUserLogin = "user-login"

	flagDataTicket = "token"
)

// Flag is a process-wide setting record keyed by tag.
type Flag struct {
	Tag     string
	Setting int
	Data    string
}

// RegistrationMode is the interpretation of the new-users flag.
type RegistrationMode int

const (
	RegistrationEnabled RegistrationMode = iota
	RegistrationDisabled
	RegistrationTicketGated
)

// RegistrationMode interprets the flag as the new-users setting.
// A nil flag means the record was never configured and registration stays open.
func (f *Flag) RegistrationMode() RegistrationMode {
	if f == nil || f.Setting != 0 {
		return RegistrationEnabled
	}
	if f.Data == flagDataTicket {
		return RegistrationTicketGated
	}
	return RegistrationDisabled
}

// LoginEnabled interprets the flag as the user-login setting.
func (f *Flag) LoginEnabled() bool {
	return f == nil || f.Setting != 0
}
