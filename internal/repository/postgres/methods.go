package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

var methodColumns = []string{
	"id",
	"user_id",
	"kind",
	"password_hash",
	"ticket",
	"step",
	"status",
	"created_at",
	"updated_at",
	"last_used",
	"expiration",
}

// MethodRepository implements port.MethodRepository using PostgreSQL.
type MethodRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMethodRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewMethodRepository(exec pgExecutor) *MethodRepository {
	repo := &MethodRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *MethodRepository) WithTx(tx pgx.Tx) *MethodRepository {
	if tx == nil {
		return r
	}
	return &MethodRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a method row.
func (r *MethodRepository) Create(ctx context.Context, method domain.Method) error {
	stmt, args, err := r.builder.Insert("methods").
		Columns(methodColumns...).
		Values(
			method.ID,
			method.UserID,
			int(method.Kind),
			nullableString(method.PasswordHash),
			nullableString(method.Ticket),
			method.Step,
			int(method.Status),
			method.Created,
			method.Updated,
			method.LastUsed,
			method.Expiration,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert method sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert method: %w", mapWriteError(err))
	}

	return nil
}

// FindActive returns the newest active method matching query.
func (r *MethodRepository) FindActive(ctx context.Context, query port.MethodQuery) (*domain.Method, error) {
	builder := r.builder.
		Select(methodColumns...).
		From("methods").
		Where(squirrel.Eq{
			"user_id": query.UserID,
			"kind":    int(query.Kind),
			"status":  int(domain.MethodActive),
		}).
		OrderBy("created_at DESC").
		Limit(1)

	if query.Step != nil {
		builder = builder.Where(squirrel.Eq{"step": *query.Step})
	}
	if query.Ticket != "" {
		builder = builder.Where(squirrel.Eq{"ticket": query.Ticket})
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select method sql: %w", err)
	}

	method, err := scanMethod(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan method: %w", err)
	}
	return method, nil
}

// MarkUsed stamps the method's last use.
func (r *MethodRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("methods").
		Set("last_used", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark method used sql: %w", err)
	}
	return r.execOne(ctx, stmt, args, "mark method used")
}

// SetPasswordHash replaces the hash of a password method.
func (r *MethodRepository) SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	stmt, args, err := r.builder.Update("methods").
		Set("password_hash", hash).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id, "kind": int(domain.MethodPassword)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set password hash sql: %w", err)
	}
	return r.execOne(ctx, stmt, args, "set password hash")
}

func (r *MethodRepository) execOne(ctx context.Context, stmt string, args []any, op string) error {
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeactivateIfActive flips an active method to inactive and stamps its use.
// It reports false when another caller already deactivated it.
func (r *MethodRepository) DeactivateIfActive(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("methods").
		Set("status", int(domain.MethodInactive)).
		Set("updated_at", at).
		Set("last_used", at).
		Where(squirrel.Eq{"id": id, "status": int(domain.MethodActive)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build deactivate method sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("deactivate method: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// DeactivateAll deactivates every active method of kind for the user.
func (r *MethodRepository) DeactivateAll(ctx context.Context, userID string, kind domain.MethodKind, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("methods").
		Set("status", int(domain.MethodInactive)).
		Set("updated_at", at).
		Where(squirrel.Eq{
			"user_id": userID,
			"kind":    int(kind),
			"status":  int(domain.MethodActive),
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate methods sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate methods: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// DeleteByKind removes every method of kind for the user, active or not.
func (r *MethodRepository) DeleteByKind(ctx context.Context, userID string, kind domain.MethodKind) (int, error) {
	stmt, args, err := r.builder.Delete("methods").
		Where(squirrel.Eq{"user_id": userID, "kind": int(kind)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete methods sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete methods: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// DeleteAllForUser removes every method owned by the user.
func (r *MethodRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Delete("methods").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete user methods sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete user methods: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func scanMethod(row pgx.Row) (*domain.Method, error) {
	var (
		method       domain.Method
		kind, status int
		passwordHash sql.NullString
		ticket       sql.NullString
		lastUsed     *time.Time
		expiration   *time.Time
	)

	if err := row.Scan(
		&method.ID,
		&method.UserID,
		&kind,
		&passwordHash,
		&ticket,
		&method.Step,
		&status,
		&method.Created,
		&method.Updated,
		&lastUsed,
		&expiration,
	); err != nil {
		return nil, err
	}

	method.Kind = domain.MethodKind(kind)
	method.Status = domain.MethodStatus(status)
	method.PasswordHash = passwordHash.String
	method.Ticket = ticket.String
	method.LastUsed = lastUsed
	method.Expiration = expiration
	return &method, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
