// Package memstore is an in-memory implementation of the repository methods,
// used by unit and HTTP tests in place of PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
	"github.com/tokenapi/tokenapi/internal/token"
)

// Store mirrors the PostgreSQL repository semantics in memory.
// WithinTx holds the store lock for the whole callback, which serializes
// transactions the way the user row lock does.
type Store struct {
	mu   sync.Mutex
	data state

	// txMu serializes RunInTx callers.
	txMu sync.Mutex

	// PingErr is returned by Ping when set.
	PingErr error
}

type state struct {
	users      map[int64]model.User
	tokens     map[string]model.Token
	orders     map[string]model.SalesOrder
	categories map[int64]model.Category
	genres     map[int64]model.Genre
	actors     map[int64]model.Actor
	movies     map[int64]movieRow
	shots      map[int64]model.MovieShot
	stars      map[int64]model.RatingStar
	ratings    map[int64]model.Rating
	reviews    map[int64]model.Review
	nextID     int64
}

type movieRow struct {
	movie     model.Movie
	directors []int64
	actors    []int64
	genres    []int64
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

func newState() state {
	return state{
		users:      make(map[int64]model.User),
		tokens:     make(map[string]model.Token),
		orders:     make(map[string]model.SalesOrder),
		categories: make(map[int64]model.Category),
		genres:     make(map[int64]model.Genre),
		actors:     make(map[int64]model.Actor),
		movies:     make(map[int64]movieRow),
		shots:      make(map[int64]model.MovieShot),
		stars:      make(map[int64]model.RatingStar),
		ratings:    make(map[int64]model.Rating),
		reviews:    make(map[int64]model.Review),
	}
}

func (s state) clone() state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.genres {
		c.genres[k] = v
	}
	for k, v := range s.actors {
		c.actors[k] = v
	}
	for k, v := range s.movies {
		c.movies[k] = v
	}
	for k, v := range s.shots {
		c.shots[k] = v
	}
	for k, v := range s.stars {
		c.stars[k] = v
	}
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Ping reports PingErr.
func (s *Store) Ping(ctx context.Context) error {
	return s.PingErr
}

// WithinTx runs fn with exclusive access. Changes are discarded if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx token.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, &txView{data: &s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// RunInTx runs fn and restores the state it started from if fn fails.
// Unlike WithinTx it does not hold the store lock, so fn may call any
// Store method. Writes made by other goroutines while fn runs are lost on
// rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ============================================================================
// Users
// ============================================================================

// CreateUser inserts a user, assigning ID and DateJoined.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.data.users {
		if u.Username == user.Username {
			return repository.ErrUsernameExists
		}
	}
	user.ID = s.data.id()
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	s.data.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ListUsers returns users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*model.User, 0, len(s.data.users))
	for _, u := range s.data.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SetUserActive enables or disables a user.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsActive = active
	s.data.users[id] = u
	return nil
}

// ============================================================================
// Tokens
// ============================================================================

// GetTokenByKey retrieves a token regardless of state.
func (s *Store) GetTokenByKey(ctx context.Context, key string) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data.tokens[key]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return &t, nil
}

// ActiveTokenCount returns how many active tokens the user holds.
func (s *Store) ActiveTokenCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.data.tokens {
		if t.UserID == userID && t.IsActive {
			n++
		}
	}
	return n
}

// TokenCount returns how many token rows the user has, active or not.
func (s *Store) TokenCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.data.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// PutToken inserts or replaces a token row directly.
func (s *Store) PutToken(t model.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tokens[t.Key] = t
}

// ListTokens returns tokens with owners, newest first, optionally filtered
// by a case-insensitive username or email substring.
func (s *Store) ListTokens(ctx context.Context, search string) ([]*model.TokenListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(search)
	listings := make([]*model.TokenListing, 0)
	for _, t := range s.data.tokens {
		u := s.data.users[t.UserID]
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		listings = append(listings, &model.TokenListing{
			Key:      t.Key,
			UserID:   t.UserID,
			Username: u.Username,
			Email:    u.Email,
			Created:  t.Created,
			IsActive: t.IsActive,
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Created.After(listings[j].Created)
	})
	return listings, nil
}

type txView struct {
	data *state
}

func (tx *txView) LockUser(ctx context.Context, userID int64) error {
	if _, ok := tx.data.users[userID]; !ok {
		return repository.ErrUserNotFound
	}
	return nil
}

func (tx *txView) GetActiveTokenByUser(ctx context.Context, userID int64) (*model.Token, error) {
	for _, t := range tx.data.tokens {
		if t.UserID == userID && t.IsActive {
			return &t, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

func (tx *txView) GetTokenForUser(ctx context.Context, userID int64, key string) (*model.Token, error) {
	t, ok := tx.data.tokens[key]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTokenNotFound
	}
	return &t, nil
}

func (tx *txView) CreateToken(ctx context.Context, t *model.Token) error {
	if _, ok := tx.data.users[t.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	if _, ok := tx.data.tokens[t.Key]; ok {
		return repository.ErrTokenKeyExists
	}
	if t.IsActive {
		for _, existing := range tx.data.tokens {
			if existing.UserID == t.UserID && existing.IsActive {
				return repository.ErrActiveTokenExists
			}
		}
	}
	tx.data.tokens[t.Key] = *t
	return nil
}

func (tx *txView) TouchToken(ctx context.Context, key string, at time.Time) error {
	t, ok := tx.data.tokens[key]
	if !ok || !t.IsActive {
		return repository.ErrTokenNotFound
	}
	t.Created = at
	tx.data.tokens[key] = t
	return nil
}

func (tx *txView) DeactivateToken(ctx context.Context, key string) error {
	t, ok := tx.data.tokens[key]
	if !ok || !t.IsActive {
		return repository.ErrTokenNotFound
	}
	t.IsActive = false
	tx.data.tokens[key] = t
	return nil
}

// ============================================================================
// Orders
// ============================================================================

// CreateOrder inserts a sales order.
func (s *Store) CreateOrder(ctx context.Context, order *model.SalesOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.orders[order.ID] = *order
	return nil
}

// GetOrder retrieves a sales order.
func (s *Store) GetOrder(ctx context.Context, id string) (*model.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders(ctx context.Context) ([]*model.SalesOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]*model.SalesOrder, 0, len(s.data.orders))
	for _, o := range s.data.orders {
		o := o
		orders = append(orders, &o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// UpdateOrder overwrites a sales order.
func (s *Store) UpdateOrder(ctx context.Context, order *model.SalesOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.CreatedAt = existing.CreatedAt
	s.data.orders[order.ID] = *order
	return nil
}

// DeleteOrder removes a sales order.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.data.orders, id)
	return nil
}
