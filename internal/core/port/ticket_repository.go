package port

import (
	"context"

	"github.com/arklim/account-auth/internal/core/domain"
)

// SystemTicketRepository persists global single-use tickets.
type SystemTicketRepository interface {
	Create(ctx context.Context, ticket domain.SystemTicket) error
	GetByValue(ctx context.Context, purpose, value string) (*domain.SystemTicket, error)
	// MarkExhausted sets exhausted only when the ticket is still unused and
	// reports whether this call performed the transition.
	MarkExhausted(ctx context.Context, id string) (bool, error)
}
