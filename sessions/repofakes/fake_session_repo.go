package fakesessionrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

const (
	defaultTTL      = time.Hour
	defaultLifetime = 48 * time.Hour
)

type record struct {
	raw          []byte
	nativeExpiry time.Time
}

// FakeSessionRepo keeps serialised records in memory so callers never share
// pointers with the store, like a real key-value backend.
type FakeSessionRepo struct {
	records  map[string]record
	lock     sync.RWMutex
	nowTime  func() time.Time
	lifetime time.Duration
	writes   int
}

type Option func(*FakeSessionRepo)

// WithNowTime sets the clock (primarily for testing expiry).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(sr *FakeSessionRepo) {
		sr.nowTime = nowFunc
	}
}

func WithSessionLifetime(d time.Duration) Option {
	return func(sr *FakeSessionRepo) {
		sr.lifetime = d
	}
}

func NewFakeSessionRepo(opts ...Option) *FakeSessionRepo {
	sr := &FakeSessionRepo{
		records:  make(map[string]record),
		nowTime:  time.Now,
		lifetime: defaultLifetime,
	}
	for _, opt := range opts {
		opt(sr)
	}
	return sr
}

func (sr *FakeSessionRepo) Create(_ context.Context, seed sessions.Seed, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := sr.nowTime()
	s := sessions.New(uuid.NewString(), seed, now, ttl)
	raw, err := s.Marshal()
	if err != nil {
		return "", err
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()
	if rec, ok := sr.records[s.ID]; ok && now.Before(rec.nativeExpiry) {
		return "", fmt.Errorf("session id %s already exists", s.ID)
	}
	sr.records[s.ID] = record{raw: raw, nativeExpiry: now.Add(ttl)}
	sr.writes++
	return s.ID, nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	return sr.load(sessionID)
}

// load must be called with the write lock held since it evicts.
func (sr *FakeSessionRepo) load(sessionID string) (*sessions.Session, error) {
	now := sr.nowTime()
	rec, ok := sr.records[sessionID]
	if !ok || !now.Before(rec.nativeExpiry) {
		delete(sr.records, sessionID)
		return nil, errors.ErrSessionNotFound
	}
	s, err := sessions.Unmarshal(rec.raw)
	if err != nil || s.IsExpired(now) {
		delete(sr.records, sessionID)
		return nil, errors.ErrSessionNotFound
	}
	return s, nil
}

func (sr *FakeSessionRepo) Update(ctx context.Context, sessionID string, patch sessions.Update, extendTTL bool) (bool, error) {
	_, ok, err := sr.UpdateIf(ctx, sessionID, nil, patch, extendTTL)
	return ok, err
}

func (sr *FakeSessionRepo) UpdateIf(_ context.Context, sessionID string, expected []sessions.Status, patch sessions.Update, extendTTL bool) (*sessions.Session, bool, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	s, err := sr.load(sessionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil, false, nil
	}
	if !sessions.Matches(s.Status, expected) {
		return s, false, nil
	}
	now := sr.nowTime()
	s.Apply(patch, now, extendTTL, sr.lifetime)
	raw, err := s.Marshal()
	if err != nil {
		return nil, false, err
	}
	rec := sr.records[sessionID]
	rec.raw = raw
	if extendTTL {
		rec.nativeExpiry = now.Add(sr.lifetime)
	}
	sr.records[sessionID] = rec
	sr.writes++
	return s, true, nil
}

func (sr *FakeSessionRepo) UpdateStatus(ctx context.Context, sessionID string, status sessions.Status, code, errMsg string) (bool, error) {
	return sr.Update(ctx, sessionID, sessions.StatusUpdate(status, code, errMsg), false)
}

func (sr *FakeSessionRepo) Delete(_ context.Context, sessionID string) (bool, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	_, ok := sr.records[sessionID]
	delete(sr.records, sessionID)
	return ok, nil
}

func (sr *FakeSessionRepo) ScanActive(_ context.Context) (map[string]*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	active := make(map[string]*sessions.Session)
	for id, rec := range sr.records {
		s, err := sr.load(id)
		if err != nil {
			continue
		}
		s.RemainingTTL = rec.nativeExpiry.Sub(sr.nowTime())
		active[id] = s
	}
	return active, nil
}

func (sr *FakeSessionRepo) Sweep(_ context.Context) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	removed := 0
	for id := range sr.records {
		if _, err := sr.load(id); err != nil {
			removed++
		}
	}
	return removed, nil
}

// Backdate rewrites expires_at without touching the native expiry, mimicking
// a store that has not evicted the record yet.
func (sr *FakeSessionRepo) Backdate(sessionID string, expiresAt time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	rec, ok := sr.records[sessionID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s, err := sessions.Unmarshal(rec.raw)
	if err != nil {
		return err
	}
	s.ExpiresAt = expiresAt
	if rec.raw, err = s.Marshal(); err != nil {
		return err
	}
	sr.records[sessionID] = rec
	return nil
}

// PutRaw stores an arbitrary payload under sessionID.
func (sr *FakeSessionRepo) PutRaw(sessionID string, raw []byte, ttl time.Duration) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.records[sessionID] = record{raw: raw, nativeExpiry: sr.nowTime().Add(ttl)}
}

// Len is the number of physically stored records.
func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.records)
}

// Writes counts successful create and update calls.
func (sr *FakeSessionRepo) Writes() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.writes
}
