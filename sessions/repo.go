package sessions

import (
	"context"
	"slices"
	"time"
)

// Repo is the session store. Every read goes to the backing store; nothing is
// cached between calls because the callback and the verifying caller may run
// in different processes.
type Repo interface {
	// Create stores a new pending session in a single write and returns its
	// ID. A seed without an ID gets a random one; an ID that already exists
	// is an error. ttl <= 0 uses the store default.
	Create(ctx context.Context, seed Seed, ttl time.Duration) (string, error)

	// Get returns the session or ErrSessionNotFound. Expired and corrupt
	// records are deleted on read.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Update merges the patch. It returns false when the session does not
	// exist. extendTTL moves expiry to the long lived session lifetime.
	Update(ctx context.Context, sessionID string, patch Update, extendTTL bool) (bool, error)

	// UpdateIf merges the patch only while the stored status is one of
	// expected, checked and written atomically. It returns the stored session
	// after the call (nil when it does not exist) and whether the patch was
	// written. An empty expected matches any status.
	UpdateIf(ctx context.Context, sessionID string, expected []Status, patch Update, extendTTL bool) (*Session, bool, error)

	// UpdateStatus sets the status with an optional code or error. It never
	// extends the TTL.
	UpdateStatus(ctx context.Context, sessionID string, status Status, code, errMsg string) (bool, error)

	Delete(ctx context.Context, sessionID string) (bool, error)

	// ScanActive pages through the keyspace and returns unexpired sessions.
	ScanActive(ctx context.Context) (map[string]*Session, error)

	// Sweep removes expired and unreadable records and returns how many went.
	Sweep(ctx context.Context) (int, error)
}

// Matches reports whether status is one of expected. An empty expected
// matches everything.
func Matches(status Status, expected []Status) bool {
	return len(expected) == 0 || slices.Contains(expected, status)
}

// StatusUpdate builds the patch used by UpdateStatus implementations.
func StatusUpdate(status Status, code, errMsg string) Update {
	u := Update{Status: &status}
	if code != "" {
		u.Code = &code
	}
	if errMsg != "" {
		u.Error = &errMsg
	}
	return u
}
