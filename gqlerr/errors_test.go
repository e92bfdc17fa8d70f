package gqlerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/gqlerr"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := gqlerr.NewNotFoundError("User")
		assert.Equal(t, "gqlmap: User not found", err.Error())
	})

	t.Run("WithIDs", func(t *testing.T) {
		err := gqlerr.NewNotFoundErrorWithIDs("Membership", map[string]any{"user": 2, "group": 1})
		assert.Equal(t, "gqlmap: Membership not found (group=1, user=2)", err.Error())
		assert.Equal(t, "Membership", err.Label())
		assert.Len(t, err.IDs(), 2)
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := gqlerr.NewNotFoundError("Comment")
		assert.True(t, errors.Is(err, gqlerr.ErrNotFound))
		assert.True(t, gqlerr.IsNotFound(err))
		assert.True(t, gqlerr.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, gqlerr.IsNotFound(gqlerr.ErrNotFound))
		assert.False(t, gqlerr.IsNotFound(errors.New("other error")))
		assert.False(t, gqlerr.IsNotFound(nil))
	})
}

func TestConfigError(t *testing.T) {
	cause := errors.New("unknown type")
	err := gqlerr.NewConfigError("UserPage", `field "items" references "[User]"`, cause)
	assert.Equal(t, `gqlmap: config: UserPage: field "items" references "[User]": unknown type`, err.Error())
	assert.True(t, errors.Is(err, gqlerr.ErrConfig))
	assert.ErrorIs(t, err, cause)
	assert.True(t, gqlerr.IsConfigError(fmt.Errorf("build: %w", err)))
	assert.False(t, gqlerr.IsConfigError(cause))
	assert.False(t, gqlerr.IsConfigError(nil))

	assert.Equal(t, "gqlmap: config: Query: empty", gqlerr.NewConfigError("Query", "empty", nil).Error())
}

func TestConstraintError(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed")
	err := gqlerr.NewConstraintError("unique constraint violated", cause)
	assert.Equal(t, "gqlmap: constraint failed: unique constraint violated", err.Error())
	assert.True(t, gqlerr.IsConstraintError(err))
	assert.True(t, gqlerr.IsConstraintError(fmt.Errorf("wrapper: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, gqlerr.IsConstraintError(cause))
	assert.False(t, gqlerr.IsConstraintError(nil))
}

func TestValidationError(t *testing.T) {
	err := gqlerr.NewValidationError("limit", errors.New("must be positive"))
	assert.Equal(t, `gqlmap: invalid value for "limit": must be positive`, err.Error())
	assert.True(t, errors.Is(err, gqlerr.ErrInvalidArgument))
	assert.True(t, gqlerr.IsValidationError(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, gqlerr.IsValidationError(errors.New("other")))
	assert.False(t, gqlerr.IsValidationError(nil))
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("tx done")
	err := &gqlerr.RollbackError{Err: cause}
	assert.Equal(t, "gqlmap: rollback failed: tx done", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAggregateError(t *testing.T) {
	require.NoError(t, gqlerr.NewAggregateError())
	require.NoError(t, gqlerr.NewAggregateError(nil, nil))

	single := errors.New("one")
	assert.Equal(t, single, gqlerr.NewAggregateError(nil, single))

	e1, e2 := errors.New("first"), errors.New("second")
	err := gqlerr.NewAggregateError(e1, nil, e2)
	var agg *gqlerr.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Equal(t, "gqlmap: multiple errors:\n  [1] first\n  [2] second", err.Error())
	assert.Equal(t, "gqlmap: no errors", (&gqlerr.AggregateError{}).Error())
}

func TestQueryAndMutationErrors(t *testing.T) {
	cause := gqlerr.NewNotFoundError("User")

	qerr := gqlerr.NewQueryError("User", "get", cause)
	assert.Equal(t, "gqlmap: querying User (get): gqlmap: User not found", qerr.Error())
	assert.True(t, gqlerr.IsQueryError(qerr))
	assert.True(t, gqlerr.IsNotFound(qerr))
	assert.Equal(t, "gqlmap: querying User: boom", gqlerr.NewQueryError("User", "", errors.New("boom")).Error())

	merr := gqlerr.NewMutationError("User", "update", cause)
	assert.Equal(t, "gqlmap: update User: gqlmap: User not found", merr.Error())
	assert.True(t, gqlerr.IsMutationError(merr))
	assert.ErrorIs(t, merr, gqlerr.ErrNotFound)
	assert.False(t, gqlerr.IsMutationError(qerr))
	assert.False(t, gqlerr.IsQueryError(nil))
	assert.False(t, gqlerr.IsMutationError(nil))
}

func BenchmarkErrors(b *testing.B) {
	err := fmt.Errorf("wrap: %w", gqlerr.NewNotFoundError("User"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = gqlerr.IsNotFound(err)
	}
}
