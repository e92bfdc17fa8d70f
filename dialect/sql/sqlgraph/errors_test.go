package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/gqlmap/gqlerr"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, None},
		{"plain", errors.New("boom"), None},
		{"pq_unique", &pq.Error{Code: "23505"}, Unique},
		{"pq_fk_wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), ForeignKey},
		{"pq_check", &pq.Error{Code: "23514"}, Check},
		{"pq_other", &pq.Error{Code: "42P01"}, None},
		{"mysql_dup", &mysql.MySQLError{Number: 1062}, Unique},
		{"mysql_fk_parent", &mysql.MySQLError{Number: 1451}, ForeignKey},
		{"mysql_fk_child", &mysql.MySQLError{Number: 1452}, ForeignKey},
		{"mysql_null", &mysql.MySQLError{Number: 1048}, NotNull},
		{"sqlite_unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), Unique},
		{"sqlite_fk", errors.New("FOREIGN KEY constraint failed"), ForeignKey},
		{"sqlite_not_null", errors.New("NOT NULL constraint failed: users.name"), NotNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()
	require.NoError(t, Wrap(nil))

	plain := errors.New("boom")
	require.Same(t, plain, Wrap(plain))

	cause := &pq.Error{Code: "23505"}
	err := Wrap(cause)
	require.True(t, gqlerr.IsConstraintError(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "unique constraint violated")
	require.True(t, IsConstraintError(err))
	require.True(t, IsUniqueConstraintError(err))
	require.False(t, IsForeignKeyConstraintError(err))
	require.Equal(t, err, Wrap(err))
}
