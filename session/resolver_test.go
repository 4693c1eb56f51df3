package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableside/dinein/models"
)

// fakeStore is an in-memory Store that tracks how often each operation
// runs and what sessions exist.
type fakeStore struct {
	sessions  map[string]*models.TableSession
	nextID    uint
	verifyErr error
	createErr error
	verifies  int
	creates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*models.TableSession)}
}

func (f *fakeStore) GetSessionByToken(_ context.Context, token string) (*models.TableSession, error) {
	f.verifies++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	sess, ok := f.sessions[token]
	if !ok {
		return nil, errors.New("session not found")
	}
	copied := *sess
	return &copied, nil
}

func (f *fakeStore) CreateSession(_ context.Context, restaurantID uint, tableNumber string) (*models.TableSession, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	// Idempotent on active existence, like the real store.
	for _, sess := range f.sessions {
		if sess.TableNumber == tableNumber && sess.Status == models.SessionStatusActive {
			copied := *sess
			return &copied, nil
		}
	}
	f.nextID++
	sess := &models.TableSession{
		ID:           f.nextID,
		RestaurantID: restaurantID,
		TableNumber:  tableNumber,
		SessionToken: fmt.Sprintf("token-%d", f.nextID),
		Status:       models.SessionStatusActive,
	}
	f.sessions[sess.SessionToken] = sess
	copied := *sess
	return &copied, nil
}

func newTestResolver(store Store) (*Resolver, *MemoryCache) {
	cache := NewMemoryCache()
	return NewResolver(store, cache, 1, "warung-tengah"), cache
}

func TestResolveCreatesWhenCacheEmpty(t *testing.T) {
	fs := newFakeStore()
	r, cache := newTestResolver(fs)

	sess, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", sess.SessionToken)
	assert.Equal(t, 1, fs.creates)
	assert.Equal(t, 0, fs.verifies)

	cached, ok := cache.Get("session_warung-tengah_T1")
	assert.True(t, ok)
	assert.Equal(t, "token-1", cached)
}

func TestResolveReusesVerifiedToken(t *testing.T) {
	fs := newFakeStore()
	r, _ := newTestResolver(fs)

	first, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	assert.Equal(t, first.SessionToken, second.SessionToken)
	assert.Equal(t, 1, fs.creates)
	assert.Equal(t, 1, fs.verifies)
}

func TestResolveDiscardsTerminalSession(t *testing.T) {
	fs := newFakeStore()
	r, cache := newTestResolver(fs)

	first, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	fs.sessions[first.SessionToken].Status = models.SessionStatusPaid

	second, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)

	cached, _ := cache.Get("session_warung-tengah_T1")
	assert.Equal(t, second.SessionToken, cached)
}

func TestResolveDiscardsOnVerifyFailure(t *testing.T) {
	fs := newFakeStore()
	r, _ := newTestResolver(fs)

	_, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	// Network failure on verification must not block ordering.
	fs.verifyErr = errors.New("connection refused")
	sess, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, 2, fs.creates)
}

func TestResolveTableChangeDropsOldToken(t *testing.T) {
	fs := newFakeStore()
	r, cache := newTestResolver(fs)

	first, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	// Diner scans a different table's QR.
	second, err := r.Resolve(context.Background(), "T2")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)

	// The old table's entry is gone; re-resolving T1 cannot reuse it
	// silently from cache.
	_, ok := cache.Get("session_warung-tengah_T1")
	assert.False(t, ok)
}

func TestResolveMismatchedTableDiscards(t *testing.T) {
	fs := newFakeStore()
	r, cache := newTestResolver(fs)

	sess, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)

	// Simulate a corrupted cache pointing T1 at a T2 session.
	fs.sessions[sess.SessionToken].TableNumber = "T2"
	cache.Delete("active_session_warung-tengah")

	fresh, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.NotEqual(t, sess.SessionToken, fresh.SessionToken)
	assert.Equal(t, "T1", fresh.TableNumber)
}

func TestResolveCreateFailureIsRetryable(t *testing.T) {
	fs := newFakeStore()
	fs.createErr = errors.New("db down")
	r, cache := newTestResolver(fs)

	_, err := r.Resolve(context.Background(), "T1")
	require.Error(t, err)

	// Nothing cached on failure.
	_, ok := cache.Get("session_warung-tengah_T1")
	assert.False(t, ok)

	// Retry succeeds once the store recovers.
	fs.createErr = nil
	sess, err := r.Resolve(context.Background(), "T1")
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestRememberCustomer(t *testing.T) {
	fs := newFakeStore()
	r, _ := newTestResolver(fs)

	r.RememberCustomer("Ayu", "0812345678")
	name, phone := r.CustomerIdentity()
	assert.Equal(t, "Ayu", name)
	assert.Equal(t, "0812345678", phone)
}
