package domain

import "time"

// TicketPurposeNewUser gates registration when the new-users flag requires a ticket.
const TicketPurposeNewUser = "new-user"

// SystemTicket is a process-wide single-use admission ticket, owned by no user.
type SystemTicket struct {
	ID         string
	Purpose    string
	Value      string
	Exhausted  bool
	Expiration *time.Time
	Created    time.Time
}

// Expired reports whether the ticket has elapsed its validity window.
// Tickets without an expiration never expire.
func (t SystemTicket) Expired(at time.Time) bool {
	if t.Expiration == nil {
		return false
	}
	return at.After(*t.Expiration)
}

// Usable reports whether the ticket may still admit a registration.
func (t SystemTicket) Usable(at time.Time) bool {
	return !t.Exhausted && !t.Expired(at)
}
