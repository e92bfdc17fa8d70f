package gqlmap

import (
	"github.com/syssam/gqlmap/gqlerr"
)

// The error types live in gqlerr so that the query, mutation and storage
// packages can return them without importing this package.
type (
	// NotFoundError is returned by update mutations whose identifier
	// selects no row.
	NotFoundError = gqlerr.NotFoundError
	// ConfigError reports a schema that cannot be built.
	ConfigError = gqlerr.ConfigError
	// ConstraintError reports a database constraint violation.
	ConstraintError = gqlerr.ConstraintError
	// ValidationError reports an unusable argument or field value.
	ValidationError = gqlerr.ValidationError
	// RollbackError reports a failed rollback.
	RollbackError = gqlerr.RollbackError
	// AggregateError collects several errors.
	AggregateError = gqlerr.AggregateError
	// QueryError wraps the failure of a generated query.
	QueryError = gqlerr.QueryError
	// MutationError wraps the failure of a generated mutation.
	MutationError = gqlerr.MutationError
)

// Sentinel errors.
var (
	ErrNotFound        = gqlerr.ErrNotFound
	ErrInvalidArgument = gqlerr.ErrInvalidArgument
	ErrConfig          = gqlerr.ErrConfig
)

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool { return gqlerr.IsNotFound(err) }

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool { return gqlerr.IsConfigError(err) }

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool { return gqlerr.IsConstraintError(err) }

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool { return gqlerr.IsValidationError(err) }

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool { return gqlerr.IsQueryError(err) }

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool { return gqlerr.IsMutationError(err) }
