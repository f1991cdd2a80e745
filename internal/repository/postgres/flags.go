package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/account-auth/internal/core/domain"
)

// FlagRepository reads and writes feature flags stored in the flags table.
type FlagRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewFlagRepository constructs a flag repository.
func NewFlagRepository(exec pgExecutor) *FlagRepository {
	return &FlagRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// GetFlag returns the flag record, or nil when the tag was never configured.
func (r *FlagRepository) GetFlag(ctx context.Context, tag string) (*domain.Flag, error) {
	stmt, args, err := r.builder.
		Select("tag", "setting", "data").
		From("flags").
		Where(squirrel.Eq{"tag": tag}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select flag sql: %w", err)
	}

	var flag domain.Flag
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&flag.Tag, &flag.Setting, &flag.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan flag: %w", err)
	}
	return &flag, nil
}

// SetFlag inserts or replaces the flag record.
func (r *FlagRepository) SetFlag(ctx context.Context, flag domain.Flag) error {
	stmt, args, err := r.builder.Insert("flags").
		Columns("tag", "setting", "data").
		Values(flag.Tag, flag.Setting, flag.Data).
		Suffix("ON CONFLICT (tag) DO UPDATE SET setting = EXCLUDED.setting, data = EXCLUDED.data").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert flag sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert flag: %w", err)
	}
	return nil
}
