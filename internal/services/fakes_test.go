package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/esp-pix/authserver/internal/store"
	"github.com/esp-pix/authserver/types"
	"github.com/google/uuid"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]types.User{}}
}

func (r *memUsers) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUsers) List(context.Context) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	users    *memUsers
	sessions map[string]types.Session
}

func newMemSessions(users *memUsers) *memSessions {
	return &memSessions{users: users, sessions: map[string]types.Session{}}
}

func (r *memSessions) Create(_ context.Context, s types.Session) (types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Token == s.Token {
			return types.Session{}, store.ErrConflict
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memSessions) GetByToken(ctx context.Context, token string) (types.Session, types.User, error) {
	r.mu.Lock()
	var found *types.Session
	for _, s := range r.sessions {
		if s.Token == token {
			s := s
			found = &s
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return types.Session{}, types.User{}, store.ErrNotFound
	}
	user, err := r.users.GetByID(ctx, found.UserID)
	if err != nil {
		return types.Session{}, types.User{}, err
	}
	return *found, user, nil
}

func (r *memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memSessions) DeleteByToken(_ context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.Token == token {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessions) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memKeys struct {
	mu    sync.Mutex
	users *memUsers
	keys  map[string]types.APIKey
}

func newMemKeys(users *memUsers) *memKeys {
	return &memKeys{users: users, keys: map[string]types.APIKey{}}
}

func (r *memKeys) Create(_ context.Context, key types.APIKey) (types.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	r.keys[key.ID] = key
	return key, nil
}

func (r *memKeys) GetByID(_ context.Context, id string) (types.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return types.APIKey{}, store.ErrNotFound
	}
	return k, nil
}

func (r *memKeys) GetByKey(_ context.Context, secret string) (types.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.Key == secret {
			return k, nil
		}
	}
	return types.APIKey{}, store.ErrNotFound
}

func (r *memKeys) List(ctx context.Context, ownerID string) ([]types.OwnedAPIKey, error) {
	r.mu.Lock()
	out := make([]types.OwnedAPIKey, 0, len(r.keys))
	for _, k := range r.keys {
		if ownerID == "" || k.UserID == ownerID {
			out = append(out, types.OwnedAPIKey{APIKey: k})
		}
	}
	r.mu.Unlock()
	for i := range out {
		if u, err := r.users.GetByID(ctx, out[i].UserID); err == nil {
			out[i].Owner = types.KeyOwner{Email: u.Email, Name: u.Name}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memKeys) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	k.IsActive = active
	r.keys[id] = k
	return nil
}

func (r *memKeys) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	k.LastUsedAt = &at
	r.keys[id] = k
	return nil
}

func (r *memKeys) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.keys, id)
	return nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []types.AuthEvent
}

func (r *recordedEvents) Publish(_ context.Context, e types.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) kinds() []types.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.AuthEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
