// Package batch provides generic helpers for loading associations of many
// instances with one statement: key extraction, grouping, ordering,
// chunked concurrent loading and a request scoped identity cache.
//
// # Basic Usage
//
//	posts, _ := st.FindMany(ctx, postMeta, map[string][]any{"author_id": ids})
//	grouped := batch.GroupByKey(posts, func(p *entity.Entity) string {
//	    v, _ := p.JoinValue("author_id")
//	    return batch.Key(v)
//	})
//	ordered := batch.OrderGroupsByKeys(keys, grouped)
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/gqlmap/gqlerr"
)

// ErrNotFound is returned when a key is missing from a batch result.
var ErrNotFound = fmt.Errorf("batch: %w", gqlerr.ErrNotFound)

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// Key returns a canonical key of the given values. Numeric values of
// different widths map to the same key, so an int64 read from a row
// matches an int read from arguments.
func Key(values ...any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch v := v.(type) {
		case []byte:
			b.Write(v)
		case float64:
			if v == float64(int64(v)) {
				fmt.Fprint(&b, int64(v))
			} else {
				fmt.Fprint(&b, v)
			}
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// OrderByKeys reorders values to match the order of the requested keys.
// Missing values are represented as zero values with ErrNotFound.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// GroupByKey groups values by a key function. Useful for one-to-many
// associations where many rows share the same join column value.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped values to match the order of the
// requested keys.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// Unique returns keys without duplicates, keeping first occurrences.
func Unique[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Chunk splits items into slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	return append(chunks, items)
}

// Run calls fn for every chunk with at most limit calls in flight and
// concatenates the results in chunk order. The first error cancels the
// remaining calls.
func Run[T, V any](ctx context.Context, chunks [][]T, limit int, fn func(context.Context, []T) ([]V, error)) ([]V, error) {
	if len(chunks) == 1 {
		return fn(ctx, chunks[0])
	}
	results := make([][]V, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			vs, err := fn(ctx, chunk)
			results[i] = vs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []V
	for _, vs := range results {
		out = append(out, vs...)
	}
	return out, nil
}

// Cache is an identity map keyed by K. It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewCache returns an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{m: make(map[K]V)}
}

// Get returns the cached value of key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Prime stores value under key, replacing any previous value.
func (c *Cache[K, V]) Prime(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

// Clear removes key.
func (c *Cache[K, V]) Clear(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Len returns the number of cached values.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// PrimeMany primes multiple values into a cache.
func PrimeMany[K comparable, V any](cache *Cache[K, V], values []V, keyFn KeyFunc[K, V]) {
	for _, v := range values {
		cache.Prime(keyFn(v), v)
	}
}

// ctxKey is the context key for storing request scoped values.
type ctxKey struct{}

// WithValue injects v into the context. Resolvers use it to share one
// cache per request.
func WithValue[T any](ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// For extracts a value injected with WithValue.
func For[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(ctxKey{}).(T)
	return v, ok
}
