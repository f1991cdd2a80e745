// Package memory provides an in-process implementation of the record stores.
// A transaction holds the store lock for its whole duration and restores a
// snapshot when it fails, so concurrent units of work are serialized.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

type state struct {
	users   map[string]domain.User
	methods map[string]domain.Method
	tickets map[string]domain.SystemTicket
}

func (s state) clone() state {
	return state{
		users:   maps.Clone(s.users),
		methods: maps.Clone(s.methods),
		tickets: maps.Clone(s.tickets),
	}
}

// Store implements port.Store in memory.
type Store struct {
	mu    sync.Mutex
	state state
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		state: state{
			users:   make(map[string]domain.User),
			methods: make(map[string]domain.Method),
			tickets: make(map[string]domain.SystemTicket),
		},
	}
}

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() port.Repositories {
	return s.repositories(false)
}

// WithinTx runs fn with exclusive access to the store. A returned error or a
// panic restores the state captured before fn ran.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(ctx, s.repositories(true))
}

func (s *Store) repositories(inTx bool) port.Repositories {
	return port.Repositories{
		Users:   &userRepository{store: s, inTx: inTx},
		Methods: &methodRepository{store: s, inTx: inTx},
		Tickets: &ticketRepository{store: s, inTx: inTx},
	}
}

// with runs fn against the live state, taking the lock unless a transaction holds it.
func (s *Store) with(inTx bool, fn func(st *state) error) error {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.state)
}

type userRepository struct {
	store *Store
	inTx  bool
}

func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	return r.store.with(r.inTx, func(st *state) error {
		if err := st.unique("", user.Username, user.Email); err != nil {
			return err
		}
		st.users[user.ID] = user
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var found *domain.User
	err := r.store.with(r.inTx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &user
		return nil
	})
	return found, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string, filter port.UserFilter) (*domain.User, error) {
	var found *domain.User
	err := r.store.with(r.inTx, func(st *state) error {
		for _, user := range st.users {
			if strings.EqualFold(user.Username, username) && filter.Matches(user) {
				found = &user
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *userRepository) UsernameExists(ctx context.Context, username string, filter port.UserFilter) (bool, error) {
	return r.any(func(user domain.User) bool {
		return strings.EqualFold(user.Username, username) && filter.Matches(user)
	}), nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string, filter port.UserFilter) (bool, error) {
	return r.any(func(user domain.User) bool {
		return strings.EqualFold(user.Email, email) && filter.Matches(user)
	}), nil
}

func (r *userRepository) any(pred func(domain.User) bool) bool {
	var found bool
	_ = r.store.with(r.inTx, func(st *state) error {
		for _, user := range st.users {
			if pred(user) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found
}

func (r *userRepository) Patch(ctx context.Context, id string, patch port.UserPatch) (*domain.User, error) {
	var patched *domain.User
	err := r.store.with(r.inTx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		if patch.Username != nil {
			user.Username = *patch.Username
		}
		if patch.FirstName != nil {
			user.FirstName = *patch.FirstName
		}
		if patch.LastName != nil {
			user.LastName = *patch.LastName
		}
		if patch.Email != nil {
			user.Email = *patch.Email
		}
		if patch.Type != nil {
			user.Type = *patch.Type
		}
		if patch.Active != nil {
			user.Active = *patch.Active
		}
		if patch.Validated != nil {
			user.Validated = *patch.Validated
		}
		if patch.LastAccess != nil {
			at := *patch.LastAccess
			user.LastAccess = &at
		}
		user.Modified = patch.Modified

		if err := st.unique(id, user.Username, user.Email); err != nil {
			return err
		}
		st.users[id] = user
		patched = &user
		return nil
	})
	return patched, err
}

// unique mirrors the case-insensitive username and email indexes, ignoring the
// user with id self.
func (st *state) unique(self, username, email string) error {
	for id, existing := range st.users {
		if id == self {
			continue
		}
		if strings.EqualFold(existing.Username, username) {
			return repository.ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, email) {
			return repository.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.store.with(r.inTx, func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.users, id)
		for methodID, method := range st.methods {
			if method.UserID == id {
				delete(st.methods, methodID)
			}
		}
		return nil
	})
}

func (r *userRepository) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	users := make([]domain.User, 0)
	_ = r.store.with(r.inTx, func(st *state) error {
		for _, user := range st.users {
			if filter.Matches(user) {
				users = append(users, user)
			}
		}
		return nil
	})
	sortUsers(users)
	return users, nil
}

func sortUsers(users []domain.User) {
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
}

type methodRepository struct {
	store *Store
	inTx  bool
}

func (r *methodRepository) Create(ctx context.Context, method domain.Method) error {
	return r.store.with(r.inTx, func(st *state) error {
		if _, ok := st.users[method.UserID]; !ok {
			return repository.ErrNotFound
		}
		st.methods[method.ID] = method
		return nil
	})
}

func (r *methodRepository) FindActive(ctx context.Context, query port.MethodQuery) (*domain.Method, error) {
	var found *domain.Method
	err := r.store.with(r.inTx, func(st *state) error {
		for _, method := range st.methods {
			if method.UserID != query.UserID || method.Kind != query.Kind || !method.IsActive() {
				continue
			}
			if query.Step != nil && method.Step != *query.Step {
				continue
			}
			if query.Ticket != "" && method.Ticket != query.Ticket {
				continue
			}
			if found == nil || method.Created.After(found.Created) {
				m := method
				found = &m
			}
		}
		if found == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return found, err
}

func (r *methodRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return r.modify(id, func(m *domain.Method) error {
		m.MarkUsed(at)
		return nil
	})
}

func (r *methodRepository) SetPasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	return r.modify(id, func(m *domain.Method) error {
		if m.Kind != domain.MethodPassword {
			return repository.ErrNotFound
		}
		m.PasswordHash = hash
		m.Updated = at
		return nil
	})
}

func (r *methodRepository) modify(id string, fn func(m *domain.Method) error) error {
	return r.store.with(r.inTx, func(st *state) error {
		method, ok := st.methods[id]
		if !ok {
			return repository.ErrNotFound
		}
		if err := fn(&method); err != nil {
			return err
		}
		st.methods[id] = method
		return nil
	})
}

func (r *methodRepository) DeactivateIfActive(ctx context.Context, id string, at time.Time) (bool, error) {
	var switched bool
	err := r.store.with(r.inTx, func(st *state) error {
		method, ok := st.methods[id]
		if !ok || !method.IsActive() {
			return nil
		}
		method.Status = domain.MethodInactive
		method.MarkUsed(at)
		st.methods[id] = method
		switched = true
		return nil
	})
	return switched, err
}

func (r *methodRepository) DeactivateAll(ctx context.Context, userID string, kind domain.MethodKind, at time.Time) (int, error) {
	var count int
	err := r.store.with(r.inTx, func(st *state) error {
		for id, method := range st.methods {
			if method.UserID == userID && method.Kind == kind && method.IsActive() {
				method.Status = domain.MethodInactive
				method.Updated = at
				st.methods[id] = method
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *methodRepository) DeleteByKind(ctx context.Context, userID string, kind domain.MethodKind) (int, error) {
	return r.deleteWhere(func(m domain.Method) bool { return m.UserID == userID && m.Kind == kind })
}

func (r *methodRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	return r.deleteWhere(func(m domain.Method) bool { return m.UserID == userID })
}

func (r *methodRepository) deleteWhere(pred func(domain.Method) bool) (int, error) {
	var count int
	err := r.store.with(r.inTx, func(st *state) error {
		for id, method := range st.methods {
			if pred(method) {
				delete(st.methods, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

type ticketRepository struct {
	store *Store
	inTx  bool
}

func (r *ticketRepository) Create(ctx context.Context, ticket domain.SystemTicket) error {
	return r.store.with(r.inTx, func(st *state) error {
		for _, existing := range st.tickets {
			if existing.Value == ticket.Value {
				return repository.ErrDuplicateTicket
			}
		}
		st.tickets[ticket.ID] = ticket
		return nil
	})
}

func (r *ticketRepository) GetByValue(ctx context.Context, purpose, value string) (*domain.SystemTicket, error) {
	var found *domain.SystemTicket
	err := r.store.with(r.inTx, func(st *state) error {
		for _, ticket := range st.tickets {
			if ticket.Purpose == purpose && ticket.Value == value {
				found = &ticket
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *ticketRepository) MarkExhausted(ctx context.Context, id string) (bool, error) {
	var switched bool
	err := r.store.with(r.inTx, func(st *state) error {
		ticket, ok := st.tickets[id]
		if !ok || ticket.Exhausted {
			return nil
		}
		ticket.Exhausted = true
		st.tickets[id] = ticket
		switched = true
		return nil
	})
	return switched, err
}
