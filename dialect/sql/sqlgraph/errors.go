// Package sqlgraph classifies database errors raised by the SQL store.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/gqlmap/gqlerr"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// Kind is the category of a constraint violation.
type Kind int

// Constraint kinds.
const (
	None Kind = iota
	Unique
	ForeignKey
	Check
	NotNull
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	case NotNull:
		return "not null"
	default:
		return "none"
	}
}

// Classify returns the constraint kind of err, or None.
func Classify(err error) Kind {
	if err == nil {
		return None
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return Unique
		case pgForeignKeyViolation:
			return ForeignKey
		case pgCheckViolation:
			return Check
		case pgNotNullViolation:
			return NotNull
		}
		return None
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return Unique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKey
		case mysqlCheckConstraintViolate:
			return Check
		case mysqlBadNull:
			return NotNull
		}
		return None
	}
	// SQLite drivers report constraint failures in the message only.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return Unique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ForeignKey
	case strings.Contains(msg, "CHECK constraint failed"):
		return Check
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return NotNull
	}
	return None
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return gqlerr.IsConstraintError(err) || Classify(err) != None
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == Unique
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKey
}

// Wrap converts a constraint violation into a gqlerr.ConstraintError and
// returns any other error unchanged.
func Wrap(err error) error {
	if err == nil || gqlerr.IsConstraintError(err) {
		return err
	}
	if k := Classify(err); k != None {
		return gqlerr.NewConstraintError(k.String()+" constraint violated", err)
	}
	return err
}
