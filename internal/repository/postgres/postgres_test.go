package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/account-auth/internal/core/port"
)

func TestStore_WithinTxCommits(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE methods SET status`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		ok, err := repos.Methods.DeactivateIfActive(ctx, "method-1", now)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected deactivation inside transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_WithinTxRollsBackOnPanic(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}()

	_ = store.WithinTx(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		panic("precondition")
	})
}
