package metadata

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		kind Kind
		in   any
		want any
	}{
		{Integer, 18, int64(18)},
		{BigInt, "42", int64(42)},
		{SmallInt, []byte("7"), int64(7)},
		{Integer, float64(3), int64(3)},
		{Float, "1.5", 1.5},
		{Float, int64(2), float64(2)},
		{Decimal, "10.25", decimal.RequireFromString("10.25")},
		{Decimal, int64(3), decimal.NewFromInt(3)},
		{Boolean, int64(1), true},
		{Boolean, "false", false},
		{UUID, id.String(), id},
		{String, "a8m", "a8m"},
		{Text, id, id.String()},
		{DateTime, "2024-03-01T10:30:00Z", ts},
		{DateTime, "2024-03-01 10:30:00", ts},
		{Date, ts, ts},
		{Integer, nil, nil},
	}
	for _, tt := range tests {
		got, err := tt.kind.Coerce(tt.in)
		require.NoError(t, err, "%s(%v)", tt.kind, tt.in)
		if d, ok := tt.want.(decimal.Decimal); ok {
			assert.True(t, d.Equal(got.(decimal.Decimal)), "%s(%v)", tt.kind, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, "%s(%v)", tt.kind, tt.in)
	}
}

func TestCoerceErrors(t *testing.T) {
	t.Parallel()
	for kind, in := range map[Kind]any{
		Integer:  "abc",
		Float:    "x",
		Decimal:  "1.2.3",
		Boolean:  "maybe",
		UUID:     "not-a-uuid",
		DateTime: "yesterday",
	} {
		_, err := kind.Coerce(in)
		assert.Error(t, err, kind)
	}
	_, err := Integer.Coerce(1.5)
	assert.Error(t, err)
}
