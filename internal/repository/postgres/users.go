package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"first_name",
	"last_name",
	"email",
	"user_type",
	"is_active",
	"validated",
	"last_access",
	"created_at",
	"modified_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			user.FirstName,
			user.LastName,
			user.Email,
			int(user.Type),
			user.Active,
			user.Validated,
			user.LastAccess,
			user.Created,
			user.Modified,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", mapWriteError(err))
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetByUsername retrieves a user by case-insensitive username within filter.
func (r *UserRepository) GetByUsername(ctx context.Context, username string, filter port.UserFilter) (*domain.User, error) {
	query := r.builder.
		Select(userColumns...).
		From("users").
		Where("lower(username) = lower(?)", username).
		Limit(1)
	query = applyUserFilter(query, filter)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by username sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// UsernameExists reports whether a user with the username exists within filter.
func (r *UserRepository) UsernameExists(ctx context.Context, username string, filter port.UserFilter) (bool, error) {
	return r.exists(ctx, squirrel.Expr("lower(username) = lower(?)", username), filter)
}

// EmailExists reports whether a user with the email exists within filter.
func (r *UserRepository) EmailExists(ctx context.Context, email string, filter port.UserFilter) (bool, error) {
	return r.exists(ctx, squirrel.Expr("lower(email) = lower(?)", email), filter)
}

func (r *UserRepository) exists(ctx context.Context, pred squirrel.Sqlizer, filter port.UserFilter) (bool, error) {
	// The subquery keeps ? placeholders; the outer builder renumbers them.
	inner := applyUserFilter(squirrel.Select("1").From("users").Where(pred), filter)

	innerSQL, innerArgs, err := inner.ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	stmt, args, err := r.builder.Select().Column(squirrel.Expr("EXISTS("+innerSQL+")", innerArgs...)).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return exists, nil
}

// Patch updates only the columns named by patch and returns the row as stored.
func (r *UserRepository) Patch(ctx context.Context, id string, patch port.UserPatch) (*domain.User, error) {
	query := r.builder.Update("users").Set("modified_at", patch.Modified)
	if patch.Username != nil {
		query = query.Set("username", *patch.Username)
	}
	if patch.FirstName != nil {
		query = query.Set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		query = query.Set("last_name", *patch.LastName)
	}
	if patch.Email != nil {
		query = query.Set("email", *patch.Email)
	}
	if patch.Type != nil {
		query = query.Set("user_type", int(*patch.Type))
	}
	if patch.Active != nil {
		query = query.Set("is_active", *patch.Active)
	}
	if patch.Validated != nil {
		query = query.Set("validated", *patch.Validated)
	}
	if patch.LastAccess != nil {
		query = query.Set("last_access", *patch.LastAccess)
	}

	stmt, args, err := query.
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build patch user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("patch user: %w", mapWriteError(err))
	}
	return user, nil
}

// Delete removes the user; methods cascade, other references block the delete.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", mapWriteError(err))
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns users matching filter ordered by username.
func (r *UserRepository) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	query := applyUserFilter(
		r.builder.Select(userColumns...).From("users").OrderBy("lower(username)"),
		filter,
	)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) scanOne(ctx context.Context, stmt string, args []any) (*domain.User, error) {
	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func applyUserFilter(query squirrel.SelectBuilder, filter port.UserFilter) squirrel.SelectBuilder {
	if filter.Type != nil {
		query = query.Where(squirrel.Eq{"user_type": int(*filter.Type)})
	}
	if filter.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	return query
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user       domain.User
		userType   int
		lastAccess *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&userType,
		&user.Active,
		&user.Validated,
		&lastAccess,
		&user.Created,
		&user.Modified,
	); err != nil {
		return nil, err
	}

	user.Type = domain.UserType(userType)
	user.LastAccess = lastAccess
	return &user, nil
}
