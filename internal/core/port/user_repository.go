package port

import (
	"context"
	"time"

	"github.com/arklim/account-auth/internal/core/domain"
)

// UserFilter scopes user queries. A nil Type matches every user type.
type UserFilter struct {
	Type       *domain.UserType
	ActiveOnly bool
}

// AdminsOnly returns a filter restricted to administrators.
func AdminsOnly() UserFilter {
	admin := domain.UserTypeAdmin
	return UserFilter{Type: &admin}
}

// Merge narrows f with the constraints of other.
func (f UserFilter) Merge(other UserFilter) UserFilter {
	merged := f
	if other.Type != nil {
		merged.Type = other.Type
	}
	merged.ActiveOnly = f.ActiveOnly || other.ActiveOnly
	return merged
}

// Matches reports whether the user satisfies the filter.
func (f UserFilter) Matches(user domain.User) bool {
	if f.Type != nil && user.Type != *f.Type {
		return false
	}
	if f.ActiveOnly && !user.Active {
		return false
	}
	return true
}

// UserPatch names the columns a write changes. Nil fields keep the stored
// value, so concurrent writers of different columns do not undo each other.
type UserPatch struct {
	Username   *string
	FirstName  *string
	LastName   *string
	Email      *string
	Type       *domain.UserType
	Active     *bool
	Validated  *bool
	LastAccess *time.Time
	Modified   time.Time
}

// UserRepository exposes persistence behavior for users.
// Username and email lookups are case-insensitive.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string, filter UserFilter) (*domain.User, error)
	UsernameExists(ctx context.Context, username string, filter UserFilter) (bool, error)
	EmailExists(ctx context.Context, email string, filter UserFilter) (bool, error)
	// Patch applies the non-nil fields of patch and returns the stored row.
	Patch(ctx context.Context, id string, patch UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}
