package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	usernameIndex    = "users_username_lower_idx"
	emailIndex       = "users_email_lower_key"
	ticketValueIndex = "system_tickets_value_key"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgBeginner is satisfied by *pgxpool.Pool and pgxmock pools.
type pgBeginner interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// mapWriteError translates constraint violations into repository sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case usernameIndex:
			return fmt.Errorf("%w: %s", repository.ErrDuplicateUsername, pgErr.Detail)
		case emailIndex:
			return fmt.Errorf("%w: %s", repository.ErrDuplicateEmail, pgErr.Detail)
		case ticketValueIndex:
			return fmt.Errorf("%w: %s", repository.ErrDuplicateTicket, pgErr.Detail)
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", repository.ErrAssociatedData, pgErr.Detail)
	}
	return err
}

// Store implements port.Store over a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	db      pgBeginner
	users   *UserRepository
	methods *MethodRepository
	tickets *TicketRepository
}

// NewStore wires repositories backed by db.
func NewStore(db pgBeginner) *Store {
	store := &Store{
		db:      db,
		users:   NewUserRepository(db),
		methods: NewMethodRepository(db),
		tickets: NewTicketRepository(db),
	}
	if pool, ok := db.(*pgxpool.Pool); ok {
		store.pool = pool
	}
	return store
}

// Repositories returns repositories bound to the pool.
func (s *Store) Repositories() port.Repositories {
	return port.Repositories{
		Users:   s.users,
		Methods: s.methods,
		Tickets: s.tickets,
	}
}

// WithinTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on error or panic; panics are rethrown.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", mapWriteError(commitErr))
		}
	}()

	err = fn(ctx, port.Repositories{
		Users:   s.users.WithTx(tx),
		Methods: s.methods.WithTx(tx),
		Tickets: s.tickets.WithTx(tx),
	})
	return err
}

// Flags returns a flag repository sharing the store's connection.
func (s *Store) Flags() *FlagRepository {
	return NewFlagRepository(s.db)
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases resources associated with the store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
