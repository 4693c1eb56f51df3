package session

import (
	"context"
	"fmt"

	"github.com/tableside/dinein/models"
)

// Store is the resolver's view of the session store. Implementations are
// the HTTP client (diner devices) and the gorm-backed store (in-process).
type Store interface {
	// GetSessionByToken returns the session or an error when the token is
	// unknown or the request fails. The resolver treats both identically.
	GetSessionByToken(ctx context.Context, token string) (*models.TableSession, error)
	// CreateSession is idempotent on active-session existence: under
	// concurrency it returns the existing active session for the table.
	CreateSession(ctx context.Context, restaurantID uint, tableNumber string) (*models.TableSession, error)
}

// Resolver produces exactly one active session token for a (restaurant,
// table) pair, reusing a cached token when it still verifies and creating
// a new session otherwise. It repairs the cache along the way and is safe
// to invoke repeatedly and concurrently: convergence comes from the
// store's idempotent create, not client-side locking.
type Resolver struct {
	store        Store
	cache        Cache
	slug         string
	restaurantID uint
}

func NewResolver(store Store, cache Cache, restaurantID uint, slug string) *Resolver {
	return &Resolver{
		store:        store,
		cache:        cache,
		slug:         slug,
		restaurantID: restaurantID,
	}
}

// Resolve runs the session resumption algorithm for tableNumber.
//
// A cached token is only accepted after a verification read confirms the
// session exists, answers for the requested table, and is still active.
// Any miss, mismatch or terminal status falls through to creation. A
// verification failure also falls through (fail open); a creation failure
// is returned to the caller as retryable and nothing is cached.
func (r *Resolver) Resolve(ctx context.Context, tableNumber string) (*models.TableSession, error) {
	token := r.survivingToken(tableNumber)

	if token != "" {
		sess, err := r.store.GetSessionByToken(ctx, token)
		switch {
		case err != nil:
			// Not found or network failure: never block ordering on a
			// stale token, re-create instead.
			r.discard(tableNumber)
		case sess.TableNumber != tableNumber:
			// A token must never answer for the wrong table.
			r.discard(tableNumber)
		case sess.Status == models.SessionStatusActive:
			r.remember(sess)
			return sess, nil
		default:
			// closed/paid sessions are never resumed
			r.discard(tableNumber)
		}
	}

	sess, err := r.store.CreateSession(ctx, r.restaurantID, tableNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	r.remember(sess)
	return sess, nil
}

// survivingToken reads the cache for tableNumber and applies the
// table-change rule: when the "most recent" pointer remembers a different
// table, both the pointer and that table's entry are dropped so a stale
// token cannot leak onto the new table.
func (r *Resolver) survivingToken(tableNumber string) string {
	if raw, ok := r.cache.Get(activeKey(r.slug)); ok {
		if p, valid := decodePointer(raw); valid && p.TableNumber != tableNumber {
			r.cache.Delete(tokenKey(r.slug, p.TableNumber))
			r.cache.Delete(activeKey(r.slug))
		}
	}
	token, _ := r.cache.Get(tokenKey(r.slug, tableNumber))
	return token
}

func (r *Resolver) remember(sess *models.TableSession) {
	r.cache.Set(tokenKey(r.slug, sess.TableNumber), sess.SessionToken)
	r.cache.Set(activeKey(r.slug), encodePointer(activePointer{
		Token:       sess.SessionToken,
		TableNumber: sess.TableNumber,
	}))
}

func (r *Resolver) discard(tableNumber string) {
	r.cache.Delete(tokenKey(r.slug, tableNumber))
	r.cache.Delete(activeKey(r.slug))
}

// RememberCustomer caches the diner's identity for the rest of the meal
// so repeat orders do not re-prompt.
func (r *Resolver) RememberCustomer(name, phone string) {
	r.cache.Set(nameKey(r.slug), name)
	r.cache.Set(phoneKey(r.slug), phone)
}

// CustomerIdentity returns the cached diner identity, if any.
func (r *Resolver) CustomerIdentity() (name, phone string) {
	name, _ = r.cache.Get(nameKey(r.slug))
	phone, _ = r.cache.Get(phoneKey(r.slug))
	return name, phone
}
