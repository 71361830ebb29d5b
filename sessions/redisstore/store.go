package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// KeyPrefix namespaces session records in the shared keyspace.
	KeyPrefix = "ave:session:"

	scanCount    = 100
	maxTxRetries = 5

	defaultTTL      = time.Hour
	defaultLifetime = 48 * time.Hour
)

var _ sessions.Repo = (*Store)(nil)

// Store is the Redis backed sessions.Repo. Records are JSON values under
// KeyPrefix+id with a native expiry matching expires_at.
type Store struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	lifetime time.Duration
	retry    RetryPolicy
	nowTime  func() time.Time
	metrics  *metrics.Metrics
}

type Option func(*Store)

// WithNowTime sets the clock used for expires_at bookkeeping.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithDefaultTTL is used by Create when the caller passes no TTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Store) {
		s.ttl = d
	}
}

// WithSessionLifetime is the TTL applied when an update extends a session.
func WithSessionLifetime(d time.Duration) Option {
	return func(s *Store) {
		s.lifetime = d
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) {
		s.retry = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps an existing client. The caller owns the client unless Close is
// called on the Store.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("[redisstore New] client is required")
	}
	s := &Store{
		client:   client,
		prefix:   KeyPrefix,
		ttl:      defaultTTL,
		lifetime: defaultLifetime,
		retry:    DefaultRetryPolicy,
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := withRetry(ctx, s.retry, op, fn)
	s.metrics.ObserveStoreOp(op, start, err)
	return err
}

func (s *Store) Create(ctx context.Context, seed sessions.Seed, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	sess := sessions.New(uuid.NewString(), seed, s.nowTime(), ttl)
	raw, err := sess.Marshal()
	if err != nil {
		return "", fmt.Errorf("[redisstore Create] encode: %w", err)
	}

	err = s.do(ctx, "create", func(ctx context.Context) error {
		created, err := s.client.SetNX(ctx, s.key(sess.ID), raw, ttl).Result()
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("session id %s already exists", sess.ID)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("[redisstore Create] %w", err)
	}

	log.Debug().Str("session_id", sess.ID).Dur("ttl", ttl).Msg("session created")
	return sess.ID, nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	var raw []byte
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		raw, err = s.client.Get(ctx, s.key(sessionID)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ierrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[redisstore Get] %w", err)
	}

	sess, ok := s.decode(sessionID, raw)
	if !ok {
		s.evict(ctx, sessionID)
		return nil, ierrors.ErrSessionNotFound
	}
	return sess, nil
}

// decode validates a stored payload. It returns false for records that must
// be treated as absent: unreadable or past expires_at.
func (s *Store) decode(sessionID string, raw []byte) (*sessions.Session, bool) {
	sess, err := sessions.Unmarshal(raw)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("discarding corrupt session record")
		return nil, false
	}
	if !sess.TTL.Valid {
		log.Warn().Str("session_id", sessionID).Msg("session record has no usable ttl")
	}
	if sess.IsExpired(s.nowTime()) {
		log.Debug().Str("session_id", sessionID).Msg("session expired")
		return nil, false
	}
	return sess, true
}

// evict is best effort; the native expiry removes the record eventually.
func (s *Store) evict(ctx context.Context, sessionIDs ...string) {
	if len(sessionIDs) == 0 {
		return
	}
	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = s.key(id)
	}
	err := s.do(ctx, "delete", func(ctx context.Context) error {
		return s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		log.Err(err).Strs("session_ids", sessionIDs).Msg("failed to evict session records")
	}
}

func (s *Store) Update(ctx context.Context, sessionID string, patch sessions.Update, extendTTL bool) (bool, error) {
	_, ok, err := s.UpdateIf(ctx, sessionID, nil, patch, extendTTL)
	return ok, err
}

// UpdateIf reads, checks the status and writes under WATCH, so a concurrent
// transition in between aborts and retries the transaction.
func (s *Store) UpdateIf(ctx context.Context, sessionID string, expected []sessions.Status, patch sessions.Update, extendTTL bool) (*sessions.Session, bool, error) {
	key := s.key(sessionID)
	var (
		current        *sessions.Session
		applied, stale bool
	)

	txf := func(tx *redis.Tx) error {
		current, applied, stale = nil, false, false
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		sess, ok := s.decode(sessionID, raw)
		if !ok {
			stale = true
			return nil
		}
		if !sessions.Matches(sess.Status, expected) {
			current = sess
			return nil
		}

		now := s.nowTime()
		sess.Apply(patch, now, extendTTL, s.lifetime)
		updated, err := sess.Marshal()
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if extendTTL {
				pipe.Set(ctx, key, updated, s.lifetime)
			} else {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
			}
			return nil
		})
		if err == nil {
			current, applied = sess, true
		}
		return err
	}

	err := s.do(ctx, "update", func(ctx context.Context) error {
		for i := 0; i < maxTxRetries; i++ {
			err := s.client.Watch(ctx, txf, key)
			if !errors.Is(err, redis.TxFailedErr) {
				return err
			}
			log.Debug().Str("session_id", sessionID).Msg("concurrent session write, retrying")
		}
		return redis.TxFailedErr
	})
	if err != nil {
		return nil, false, fmt.Errorf("[redisstore Update] %w", err)
	}
	if stale {
		s.evict(ctx, sessionID)
	}
	if !applied && current != nil {
		log.Debug().Str("session_id", sessionID).Str("status", current.Status.String()).Msg("session transition skipped")
	}
	return current, applied, nil
}

func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status sessions.Status, code, errMsg string) (bool, error) {
	return s.Update(ctx, sessionID, sessions.StatusUpdate(status, code, errMsg), false)
}

func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	var n int64
	err := s.do(ctx, "delete", func(ctx context.Context) error {
		var err error
		n, err = s.client.Del(ctx, s.key(sessionID)).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("[redisstore Delete] %w", err)
	}
	return n > 0, nil
}

func (s *Store) ScanActive(ctx context.Context) (map[string]*sessions.Session, error) {
	active := make(map[string]*sessions.Session)
	_, err := s.walk(ctx, func(sess *sessions.Session) {
		active[sess.ID] = sess
	})
	if err != nil {
		return nil, fmt.Errorf("[redisstore ScanActive] %w", err)
	}
	return active, nil
}

func (s *Store) Sweep(ctx context.Context) (int, error) {
	removed, err := s.walk(ctx, func(*sessions.Session) {})
	if err != nil {
		return removed, fmt.Errorf("[redisstore Sweep] %w", err)
	}
	return removed, nil
}

// walk pages through the keyspace with SCAN, hands every live session to fn
// and deletes corrupt or expired ones as it goes. It returns the number of
// records deleted.
func (s *Store) walk(ctx context.Context, fn func(*sessions.Session)) (int, error) {
	var cursor uint64
	removed := 0
	for {
		var keys []string
		err := s.do(ctx, "scan", func(ctx context.Context) error {
			var err error
			keys, cursor, err = s.client.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
			return err
		})
		if err != nil {
			return removed, err
		}

		n, err := s.visit(ctx, keys, fn)
		removed += n
		if err != nil {
			return removed, err
		}
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *Store) visit(ctx context.Context, keys []string, fn func(*sessions.Session)) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	var gets []*redis.StringCmd
	var ttls []*redis.DurationCmd
	err := s.do(ctx, "scan_get", func(ctx context.Context) error {
		gets = make([]*redis.StringCmd, len(keys))
		ttls = make([]*redis.DurationCmd, len(keys))
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range keys {
				gets[i] = pipe.Get(ctx, key)
				ttls[i] = pipe.TTL(ctx, key)
			}
			return nil
		})
		// Keys can vanish between SCAN and GET.
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	var discard []string
	for i, key := range keys {
		id := strings.TrimPrefix(key, s.prefix)
		raw, err := gets[i].Bytes()
		if err != nil {
			continue
		}
		sess, ok := s.decode(id, raw)
		if !ok {
			discard = append(discard, id)
			continue
		}
		sess.ID = id
		sess.RemainingTTL = ttls[i].Val()
		fn(sess)
	}

	s.evict(ctx, discard...)
	return len(discard), nil
}

// Health pings the server once, without retries.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
