package port

import (
	"context"

	"github.com/arklim/account-auth/internal/core/domain"
)

// Repositories groups the record stores an operation works against.
type Repositories struct {
	Users   UserRepository
	Methods MethodRepository
	Tickets SystemTicketRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// WithinTx runs fn against transaction-scoped repositories. Every write made
	// through them commits together when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// FlagSource reads feature flags. Callers poll it on every operation.
type FlagSource interface {
	GetFlag(ctx context.Context, tag string) (*domain.Flag, error)
}

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
