package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

func seedUser(t *testing.T, store *Store, id, username string) domain.User {
	t.Helper()
	user := domain.User{ID: id, Username: username, Email: username + "@example.com", Active: true}
	require.NoError(t, store.Repositories().Users.Create(context.Background(), user))
	return user
}

func TestUsersCaseInsensitiveUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "Alice")

	err := store.Repositories().Users.Create(ctx, domain.User{ID: "u2", Username: "alice"})
	require.ErrorIs(t, err, repository.ErrDuplicateUsername)

	exists, err := store.Repositories().Users.UsernameExists(ctx, "ALICE", port.UserFilter{})
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.Repositories().Users.EmailExists(ctx, "ALICE@EXAMPLE.COM", port.UserFilter{})
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUsersEmailUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "bob")

	err := store.Repositories().Users.Create(ctx, domain.User{ID: "u3", Username: "carol", Email: "ALICE@example.com"})
	require.ErrorIs(t, err, repository.ErrDuplicateEmail)

	taken := "Alice@Example.com"
	_, err = store.Repositories().Users.Patch(ctx, "u2", port.UserPatch{Email: &taken, Modified: time.Now()})
	require.ErrorIs(t, err, repository.ErrDuplicateEmail)

	same := "ALICE@EXAMPLE.COM"
	_, err = store.Repositories().Users.Patch(ctx, "u1", port.UserPatch{Email: &same, Modified: time.Now()})
	require.NoError(t, err)
}

func TestPatchKeepsUnnamedColumns(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	users := store.Repositories().Users

	validated := true
	_, err := users.Patch(ctx, "u1", port.UserPatch{Validated: &validated, Modified: time.Now()})
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	patched, err := users.Patch(ctx, "u1", port.UserPatch{LastAccess: &at, Modified: at})
	require.NoError(t, err)
	require.True(t, patched.Validated)
	require.True(t, patched.Active)
	require.Equal(t, "alice", patched.Username)
	require.Equal(t, at, *patched.LastAccess)

	_, err = users.Patch(ctx, "ghost", port.UserPatch{Modified: at})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMethodScopedWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	methods := store.Repositories().Methods

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, methods.Create(ctx, domain.Method{
		ID: "m1", UserID: "u1", Kind: domain.MethodPassword, PasswordHash: "old",
		Step: domain.StepFirst, Status: domain.MethodActive, Created: created, Updated: created,
	}))
	require.NoError(t, methods.Create(ctx, domain.Method{
		ID: "m2", UserID: "u1", Kind: domain.MethodOathKey, Ticket: "SECRET",
		Step: domain.StepSecond, Status: domain.MethodActive, Created: created, Updated: created,
	}))

	require.NoError(t, methods.SetPasswordHash(ctx, "m1", "new", created.Add(time.Minute)))
	used := created.Add(2 * time.Minute)
	require.NoError(t, methods.MarkUsed(ctx, "m1", used))

	got, err := methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodPassword})
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)
	require.Equal(t, used, *got.LastUsed)

	require.ErrorIs(t, methods.SetPasswordHash(ctx, "m2", "new", used), repository.ErrNotFound)
	require.ErrorIs(t, methods.MarkUsed(ctx, "missing", used), repository.ErrNotFound)
}

func TestUserFilterScopesLookups(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "root")
	adminType := domain.UserTypeAdmin
	_, err := store.Repositories().Users.Patch(ctx, "u2", port.UserPatch{Type: &adminType, Modified: time.Now()})
	require.NoError(t, err)

	_, err = store.Repositories().Users.GetByUsername(ctx, "alice", port.AdminsOnly())
	require.ErrorIs(t, err, repository.ErrNotFound)

	found, err := store.Repositories().Users.GetByUsername(ctx, "ROOT", port.AdminsOnly())
	require.NoError(t, err)
	require.Equal(t, "u2", found.ID)

	all, err := store.Repositories().Users.List(ctx, port.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "alice", all[0].Username)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		require.NoError(t, repos.Users.Create(ctx, domain.User{ID: "u2", Username: "bob"}))
		require.NoError(t, repos.Users.Delete(ctx, "u1"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Repositories().Users.GetByID(ctx, "u2")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Repositories().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.Panics(t, func() {
		_ = store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
			_ = repos.Users.Create(ctx, domain.User{ID: "u1", Username: "alice"})
			panic("boom")
		})
	})

	_, err := store.Repositories().Users.GetByID(ctx, "u1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUserCascadesMethods(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	repos := store.Repositories()

	require.NoError(t, repos.Methods.Create(ctx, domain.Method{ID: "m1", UserID: "u1", Kind: domain.MethodPassword, Status: domain.MethodActive}))
	require.NoError(t, repos.Users.Delete(ctx, "u1"))

	_, err := repos.Methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodPassword})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFindActiveFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	repos := store.Repositories()
	now := time.Now()

	require.NoError(t, repos.Methods.Create(ctx, domain.Method{ID: "old", UserID: "u1", Kind: domain.MethodRecoveryTicket, Ticket: "a", Status: domain.MethodActive, Created: now.Add(-time.Minute)}))
	require.NoError(t, repos.Methods.Create(ctx, domain.Method{ID: "new", UserID: "u1", Kind: domain.MethodRecoveryTicket, Ticket: "b", Status: domain.MethodActive, Created: now}))
	require.NoError(t, repos.Methods.Create(ctx, domain.Method{ID: "dead", UserID: "u1", Kind: domain.MethodRecoveryTicket, Ticket: "c", Status: domain.MethodInactive, Created: now}))

	latest, err := repos.Methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodRecoveryTicket})
	require.NoError(t, err)
	require.Equal(t, "new", latest.ID)

	byTicket, err := repos.Methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodRecoveryTicket, Ticket: "a"})
	require.NoError(t, err)
	require.Equal(t, "old", byTicket.ID)

	_, err = repos.Methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodRecoveryTicket, Ticket: "c"})
	require.ErrorIs(t, err, repository.ErrNotFound)

	step := domain.StepSecond
	_, err = repos.Methods.FindActive(ctx, port.MethodQuery{UserID: "u1", Kind: domain.MethodRecoveryTicket, Step: &step})
	require.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repos.Methods.DeactivateAll(ctx, "u1", domain.MethodRecoveryTicket, now)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDeactivateIfActiveSingleWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, "u1", "alice")
	require.NoError(t, store.Repositories().Methods.Create(ctx, domain.Method{ID: "m1", UserID: "u1", Kind: domain.MethodRecoveryTicket, Status: domain.MethodActive}))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Repositories().Methods.DeactivateIfActive(ctx, "m1", time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestSystemTicketsExhaustOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repos := store.Repositories()

	require.NoError(t, repos.Tickets.Create(ctx, domain.SystemTicket{ID: "t1", Purpose: domain.TicketPurposeNewUser, Value: "abc"}))
	require.ErrorIs(t, repos.Tickets.Create(ctx, domain.SystemTicket{ID: "t2", Purpose: domain.TicketPurposeNewUser, Value: "abc"}), repository.ErrDuplicateTicket)

	first, err := repos.Tickets.MarkExhausted(ctx, "t1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := repos.Tickets.MarkExhausted(ctx, "t1")
	require.NoError(t, err)
	require.False(t, second)

	ticket, err := repos.Tickets.GetByValue(ctx, domain.TicketPurposeNewUser, "abc")
	require.NoError(t, err)
	require.True(t, ticket.Exhausted)
}

func TestFlagStore(t *testing.T) {
	flags := NewFlagStore(domain.Flag{Tag: domain.FlagUserLogin, Setting: 0})
	ctx := context.Background()

	flag, err := flags.GetFlag(ctx, domain.FlagUserLogin)
	require.NoError(t, err)
	require.False(t, flag.LoginEnabled())

	missing, err := flags.GetFlag(ctx, domain.FlagNewUsers)
	require.NoError(t, err)
	require.Nil(t, missing)
	require.Equal(t, domain.RegistrationEnabled, missing.RegistrationMode())

	require.NoError(t, flags.SetFlag(ctx, domain.Flag{Tag: domain.FlagNewUsers, Setting: 0, Data: "token"}))
	gated, err := flags.GetFlag(ctx, domain.FlagNewUsers)
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationTicketGated, gated.RegistrationMode())

	flags.DeleteFlag(domain.FlagNewUsers)
	gone, err := flags.GetFlag(ctx, domain.FlagNewUsers)
	require.NoError(t, err)
	require.Nil(t, gone)
}
