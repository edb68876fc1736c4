// Package kvstore provides a small string key/value store where every value
// remembers when it was written, so readers can ask for it only while fresh.
// This is part of the platform layer and contains no business logic.
package kvstore

import (
	"context"
	"time"
)

// DefaultRetention bounds how long a store keeps a key written with Put that
// nobody reads. It only reclaims memory; freshness is always decided by GetFresh.
const DefaultRetention = 7 * 24 * time.Hour

// Store is a TTL-aware key/value store.
//
// Expiry is decided by the reader: GetFresh treats a value older than ttl as
// absent and removes it. A ttl of zero or less never expires.
//
// Put values may be reclaimed after the store's retention. PutPermanent values
// are kept until deleted.
type Store interface {
	Put(ctx context.Context, key, value string) error
	PutPermanent(ctx context.Context, key, value string) error
	GetFresh(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Pruner is implemented by stores that reclaim unread keys themselves when
// asked instead of relying on the backend.
type Pruner interface {
	Prune() int
}

// Clock returns the current time. Stores take one so tests can move time.
type Clock func() time.Time

func isStale(storedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(storedAt) >= ttl
}

type namespaced struct {
	prefix string
	store  Store
}

// Namespace scopes every key of store under prefix + ":".
func Namespace(store Store, prefix string) Store {
	return &namespaced{prefix: prefix + ":", store: store}
}

func (n *namespaced) Put(ctx context.Context, key, value string) error {
	return n.store.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) PutPermanent(ctx context.Context, key, value string) error {
	return n.store.PutPermanent(ctx, n.prefix+key, value)
}

func (n *namespaced) GetFresh(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return n.store.GetFresh(ctx, n.prefix+key, ttl)
}

func (n *namespaced) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = n.prefix + k
	}
	return n.store.Delete(ctx, scoped...)
}
