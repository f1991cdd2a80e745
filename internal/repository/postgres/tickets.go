package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/repository"
)

// TicketRepository implements port.SystemTicketRepository using PostgreSQL.
type TicketRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTicketRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTicketRepository(exec pgExecutor) *TicketRepository {
	repo := &TicketRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *TicketRepository) WithTx(tx pgx.Tx) *TicketRepository {
	if tx == nil {
		return r
	}
	return &TicketRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a system ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket domain.SystemTicket) error {
	stmt, args, err := r.builder.Insert("system_tickets").
		Columns("id", "purpose", "value", "exhausted", "expiration", "created_at").
		Values(ticket.ID, ticket.Purpose, ticket.Value, ticket.Exhausted, ticket.Expiration, ticket.Created).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert system ticket sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert system ticket: %w", mapWriteError(err))
	}

	return nil
}

// GetByValue retrieves a ticket by purpose and value regardless of state.
func (r *TicketRepository) GetByValue(ctx context.Context, purpose, value string) (*domain.SystemTicket, error) {
	stmt, args, err := r.builder.
		Select("id", "purpose", "value", "exhausted", "expiration", "created_at").
		From("system_tickets").
		Where(squirrel.Eq{"purpose": purpose, "value": value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select system ticket sql: %w", err)
	}

	var (
		ticket     domain.SystemTicket
		expiration *time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&ticket.ID,
		&ticket.Purpose,
		&ticket.Value,
		&ticket.Exhausted,
		&expiration,
		&ticket.Created,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan system ticket: %w", err)
	}

	ticket.Expiration = expiration
	return &ticket, nil
}

// MarkExhausted consumes the ticket only if it is still unused.
func (r *TicketRepository) MarkExhausted(ctx context.Context, id string) (bool, error) {
	stmt, args, err := r.builder.Update("system_tickets").
		Set("exhausted", true).
		Where(squirrel.Eq{"id": id, "exhausted": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exhaust system ticket sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("exhaust system ticket: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}
