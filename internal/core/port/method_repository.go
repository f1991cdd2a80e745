package port

import (
	"context"
	"time"

	"github.com/arklim/account-auth/internal/core/domain"
)

// MethodQuery selects a single active method. Step and Ticket are optional.
type MethodQuery struct {
	UserID string
	Kind   domain.MethodKind
	Step   *int
	Ticket string
}

// MethodRepository persists per-user authentication methods.
type MethodRepository interface {
	Create(ctx context.Context, method domain.Method) error
	FindActive(ctx context.Context, query MethodQuery) (*domain.Method, error)
	// MarkUsed stamps last use and touches no other column.
	MarkUsed(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error
	// DeactivateIfActive flips the method to inactive only when it is currently
	// active and reports whether this call performed the transition.
	DeactivateIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	DeactivateAll(ctx context.Context, userID string, kind domain.MethodKind, at time.Time) (int, error)
	DeleteByKind(ctx context.Context, userID string, kind domain.MethodKind) (int, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}
