package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/gqlerr"
)

type row struct {
	ID       int64
	AuthorID int64
	Title    string
}

// =============================================================================
// Key Tests
// =============================================================================

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Key(int64(1)), Key(1))
	assert.Equal(t, Key(1), Key(float64(1)))
	assert.Equal(t, Key("a"), Key([]byte("a")))
	assert.NotEqual(t, Key(1, 2), Key(12))
	assert.Equal(t, "1.5", Key(1.5))
}

// =============================================================================
// OrderByKeys Tests
// =============================================================================

func TestOrderByKeys(t *testing.T) {
	t.Parallel()
	keyFn := func(r *row) int64 { return r.ID }

	t.Run("all keys found", func(t *testing.T) {
		t.Parallel()
		result, errs := OrderByKeys([]int64{1, 2}, []*row{{ID: 2, Title: "b"}, {ID: 1, Title: "a"}}, keyFn)
		require.Len(t, result, 2)
		assert.Equal(t, "a", result[0].Title)
		assert.Equal(t, "b", result[1].Title)
		assert.Equal(t, []error{nil, nil}, errs)
	})

	t.Run("some keys missing", func(t *testing.T) {
		t.Parallel()
		result, errs := OrderByKeys([]int64{1, 3}, []*row{{ID: 1}}, keyFn)
		require.Len(t, result, 2)
		assert.Nil(t, result[1])
		assert.NoError(t, errs[0])
		assert.ErrorIs(t, errs[1], ErrNotFound)
		assert.True(t, gqlerr.IsNotFound(errs[1]))
	})
}

// =============================================================================
// Grouping Tests
// =============================================================================

func TestGroupByKey(t *testing.T) {
	t.Parallel()
	rows := []*row{{ID: 1, AuthorID: 10}, {ID: 2, AuthorID: 20}, {ID: 3, AuthorID: 10}}
	grouped := GroupByKey(rows, func(r *row) int64 { return r.AuthorID })
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[10], 2)

	ordered := OrderGroupsByKeys([]int64{20, 30, 10}, grouped)
	require.Len(t, ordered, 3)
	assert.Equal(t, int64(2), ordered[0][0].ID)
	assert.Empty(t, ordered[1])
	assert.Len(t, ordered[2], 2)
}

func TestUnique(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"b", "a"}, Unique([]string{"b", "a", "b"}))
	assert.Empty(t, Unique[int](nil))
}

// =============================================================================
// Chunk and Run Tests
// =============================================================================

func TestChunk(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, Chunk([]int{1, 2, 3}, 0))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk([]int{1, 2, 3, 4, 5}, 2))
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("keeps chunk order", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		out, err := Run(context.Background(), Chunk([]int{1, 2, 3, 4, 5}, 2), 2, func(_ context.Context, c []int) ([]int, error) {
			calls.Add(1)
			res := make([]int, len(c))
			for i, v := range c {
				res[i] = v * 10
			}
			return res, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 20, 30, 40, 50}, out)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("returns first error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		_, err := Run(context.Background(), [][]int{{1}, {2}}, 0, func(_ context.Context, c []int) ([]int, error) {
			if c[0] == 2 {
				return nil, boom
			}
			return c, nil
		})
		assert.ErrorIs(t, err, boom)
	})
}

// =============================================================================
// Cache Tests
// =============================================================================

func TestCache(t *testing.T) {
	t.Parallel()
	c := NewCache[string, *row]()
	PrimeMany(c, []*row{{ID: 1}, {ID: 2}}, func(r *row) string { return Key(r.ID) })
	assert.Equal(t, 2, c.Len())
	r, ok := c.Get(Key(1))
	require.True(t, ok)
	assert.Equal(t, int64(1), r.ID)
	c.Clear(Key(1))
	_, ok = c.Get(Key(1))
	assert.False(t, ok)
}

func TestWithValue(t *testing.T) {
	t.Parallel()
	c := NewCache[string, int]()
	ctx := WithValue(context.Background(), c)
	got, ok := For[*Cache[string, int]](ctx)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = For[*Cache[string, int]](context.Background())
	assert.False(t, ok)
}
