package redisstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/internal/utils"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/jrsteele09/ave-oauth-bridge/sessions/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testRedirect = "http://localhost:3030/callback"
	handshakeTTL = 5 * time.Minute
	lifetime     = 48 * time.Hour
)

type StoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *redisstore.Store
	ctx    context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr(), MaxRetries: -1})
	s.T().Cleanup(func() { _ = s.client.Close() })

	store, err := redisstore.New(s.client,
		redisstore.WithDefaultTTL(time.Hour),
		redisstore.WithSessionLifetime(lifetime),
		redisstore.WithRetryPolicy(redisstore.RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 1.5}),
	)
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreSuite) create() string {
	id, err := s.store.Create(s.ctx, sessions.Seed{CodeVerifier: testVerifier, RedirectURI: testRedirect}, handshakeTTL)
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) rawRecord(id string) map[string]any {
	raw, err := s.mr.Get(redisstore.KeyPrefix + id)
	s.Require().NoError(err)
	var m map[string]any
	s.Require().NoError(json.Unmarshal([]byte(raw), &m))
	return m
}

func (s *StoreSuite) TestCreateSetsNativeExpiry() {
	id := s.create()

	s.Require().NotEmpty(id)
	s.Require().Equal(handshakeTTL, s.mr.TTL(redisstore.KeyPrefix+id))

	sess, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(id, sess.ID)
	s.Require().Equal(sessions.StatusPending, sess.Status)
	s.Require().Equal(testVerifier, sess.CodeVerifier)
	s.Require().WithinDuration(sess.CreatedAt.Add(handshakeTTL), sess.ExpiresAt, time.Millisecond)
	s.Require().Equal(float64(300), s.rawRecord(id)["ttl"])
}

func (s *StoreSuite) TestCreateDefaultTTL() {
	id, err := s.store.Create(s.ctx, sessions.Seed{}, 0)
	s.Require().NoError(err)
	s.Require().Equal(time.Hour, s.mr.TTL(redisstore.KeyPrefix+id))
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.Require().ErrorIs(err, errors.ErrSessionNotFound)
}

func (s *StoreSuite) TestGetBackdatedRecordIsAbsentAndDeleted() {
	id := s.create()
	key := redisstore.KeyPrefix + id

	rec := s.rawRecord(id)
	rec["expires_at"] = time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)
	raw, err := json.Marshal(rec)
	s.Require().NoError(err)
	s.Require().NoError(s.mr.Set(key, string(raw)))
	s.mr.SetTTL(key, time.Hour)

	_, err = s.store.Get(s.ctx, id)
	s.Require().ErrorIs(err, errors.ErrSessionNotFound)
	s.Require().False(s.mr.Exists(key))
}

func (s *StoreSuite) TestGetCorruptRecordIsDeleted() {
	key := redisstore.KeyPrefix + "corrupt"
	s.Require().NoError(s.mr.Set(key, "{not-json"))

	_, err := s.store.Get(s.ctx, "corrupt")
	s.Require().ErrorIs(err, errors.ErrSessionNotFound)
	s.Require().False(s.mr.Exists(key))
}

func (s *StoreSuite) TestGetToleratesNonNumericTTL() {
	id := s.create()
	rec := s.rawRecord(id)
	rec["ttl"] = "eventually"
	raw, err := json.Marshal(rec)
	s.Require().NoError(err)
	s.Require().NoError(s.mr.Set(redisstore.KeyPrefix+id, string(raw)))

	sess, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().False(sess.TTL.Valid)
}

func (s *StoreSuite) TestNativeExpiryEvicts() {
	id := s.create()
	s.mr.FastForward(handshakeTTL + time.Second)

	_, err := s.store.Get(s.ctx, id)
	s.Require().ErrorIs(err, errors.ErrSessionNotFound)
}

func (s *StoreSuite) TestUpdateStatusKeepsTTL() {
	id := s.create()
	s.mr.FastForward(time.Minute)

	ok, err := s.store.UpdateStatus(s.ctx, id, sessions.StatusCompleted, "abc", "")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(handshakeTTL-time.Minute, s.mr.TTL(redisstore.KeyPrefix+id))

	sess, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(sessions.StatusCompleted, sess.Status)
	s.Require().Equal("abc", sess.Code)
	s.Require().False(sess.UpdatedAt.Before(sess.CreatedAt))
}

func (s *StoreSuite) TestUpdateStatusErrorClearsCode() {
	id := s.create()
	_, err := s.store.UpdateStatus(s.ctx, id, sessions.StatusCompleted, "abc", "")
	s.Require().NoError(err)
	_, err = s.store.UpdateStatus(s.ctx, id, sessions.StatusError, "", "state parameter mismatch")
	s.Require().NoError(err)

	rec := s.rawRecord(id)
	s.Require().NotContains(rec, "code")
	s.Require().Equal("state parameter mismatch", rec["error"])
}

func (s *StoreSuite) TestUpdateIf() {
	id := s.create()
	awaiting := []sessions.Status{sessions.StatusPending, sessions.StatusUpdated}

	sess, ok, err := s.store.UpdateIf(s.ctx, id, awaiting, sessions.StatusUpdate(sessions.StatusExpired, "", "window elapsed"), false)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(sessions.StatusExpired, sess.Status)
	s.Require().Equal(handshakeTTL, s.mr.TTL(redisstore.KeyPrefix+id))

	sess, ok, err = s.store.UpdateIf(s.ctx, id, awaiting, sessions.StatusUpdate(sessions.StatusCompleted, "late", ""), false)
	s.Require().NoError(err)
	s.Require().False(ok)
	s.Require().Equal(sessions.StatusExpired, sess.Status)
	s.Require().Empty(sess.Code)
	s.Require().Equal("expired", s.rawRecord(id)["status"])

	sess, ok, err = s.store.UpdateIf(s.ctx, "missing", awaiting, sessions.StatusUpdate(sessions.StatusCompleted, "abc", ""), false)
	s.Require().NoError(err)
	s.Require().False(ok)
	s.Require().Nil(sess)
}

func (s *StoreSuite) TestCreateWithSeededID() {
	seed := sessions.Seed{ID: "fixed-id", CodeVerifier: testVerifier, RedirectURI: testRedirect + "/fixed-id"}
	id, err := s.store.Create(s.ctx, seed, handshakeTTL)
	s.Require().NoError(err)
	s.Require().Equal("fixed-id", id)
	s.Require().Equal(testRedirect+"/fixed-id", s.rawRecord(id)["redirect_uri"])

	_, err = s.store.Create(s.ctx, seed, handshakeTTL)
	s.Require().Error(err)
}

func (s *StoreSuite) TestUpdateExtendTTL() {
	id := s.create()
	creds := &sessions.PlatformCredentials{ID: 1, IDEnterprise: 42, Token: "bearer", TokenBody: "body"}

	ok, err := s.store.Update(s.ctx, id, sessions.Update{
		Status:          utils.Ptr(sessions.StatusAuthenticated),
		PlatformSession: creds,
	}, true)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(lifetime, s.mr.TTL(redisstore.KeyPrefix+id))

	sess, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(*creds, *sess.PlatformSession)
	s.Require().WithinDuration(time.Now().Add(lifetime), sess.ExpiresAt, 5*time.Second)
}

func (s *StoreSuite) TestUpdateMissingDoesNotCreate() {
	ok, err := s.store.Update(s.ctx, "ghost", sessions.Update{Code: utils.Ptr("abc")}, false)
	s.Require().NoError(err)
	s.Require().False(ok)
	s.Require().False(s.mr.Exists(redisstore.KeyPrefix + "ghost"))
}

func (s *StoreSuite) TestDelete() {
	id := s.create()

	ok, err := s.store.Delete(s.ctx, id)
	s.Require().NoError(err)
	s.Require().True(ok)

	ok, err = s.store.Delete(s.ctx, id)
	s.Require().NoError(err)
	s.Require().False(ok)
}

func (s *StoreSuite) TestScanActivePagesAndDropsCorrupt() {
	ids := make(map[string]bool)
	for i := 0; i < 250; i++ {
		ids[s.create()] = true
	}
	s.Require().NoError(s.mr.Set(redisstore.KeyPrefix+"corrupt", "]["))
	s.Require().NoError(s.mr.Set("other:key", "untouched"))

	active, err := s.store.ScanActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 250)
	for id, sess := range active {
		s.Require().True(ids[id])
		s.Require().Equal(id, sess.ID)
		s.Require().Positive(sess.RemainingTTL)
	}
	s.Require().False(s.mr.Exists(redisstore.KeyPrefix + "corrupt"))
	s.Require().True(s.mr.Exists("other:key"))
}

func (s *StoreSuite) TestSweep() {
	live := s.create()
	expired := s.create()

	rec := s.rawRecord(expired)
	rec["expires_at"] = time.Now().Add(-time.Second).UTC().Format(time.RFC3339Nano)
	raw, err := json.Marshal(rec)
	s.Require().NoError(err)
	s.Require().NoError(s.mr.Set(redisstore.KeyPrefix+expired, string(raw)))
	s.Require().NoError(s.mr.Set(redisstore.KeyPrefix+"corrupt", "nope"))

	removed, err := s.store.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(2, removed)
	s.Require().True(s.mr.Exists(redisstore.KeyPrefix + live))
	s.Require().False(s.mr.Exists(redisstore.KeyPrefix + expired))
}

func (s *StoreSuite) TestStoreUnavailableAfterRetries() {
	s.mr.Close()

	_, err := s.store.Create(s.ctx, sessions.Seed{}, handshakeTTL)
	s.Require().ErrorIs(err, errors.ErrStoreUnavailable)

	_, err = s.store.Get(s.ctx, "any")
	s.Require().ErrorIs(err, errors.ErrStoreUnavailable)
}

func (s *StoreSuite) TestReconnectsAfterRestart() {
	id := s.create()
	addr := s.mr.Addr()
	s.mr.Close()

	restarted := miniredis.NewMiniRedis()
	s.Require().NoError(restarted.StartAddr(addr))
	s.T().Cleanup(restarted.Close)

	_, err := s.store.Get(s.ctx, id)
	s.Require().ErrorIs(err, errors.ErrSessionNotFound, "fresh server has no data but the client reconnects")
}

func TestNewRequiresClient(t *testing.T) {
	_, err := redisstore.New(nil)
	require.Error(t, err)
}
