package metadata

import (
	"fmt"
	"strings"

	"github.com/syssam/gqlmap/gqlerr"
)

// Issue is a single problem found in a mapping.
type Issue struct {
	Entity  string
	Field   string
	Message string
}

func (i *Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("%s.%s: %s", i.Entity, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Entity, i.Message)
}

// ValidationResult holds the results of catalog validation. Errors make
// the catalog unusable; warnings flag fields the schema will not expose.
type ValidationResult struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return gqlerr.NewAggregateError(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - " + e.Error() + "\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - " + w.Error() + "\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(e *Entity, field, format string, a ...any) {
	r.Errors = append(r.Errors, &Issue{Entity: e.Name, Field: field, Message: fmt.Sprintf(format, a...)})
}

func (r *ValidationResult) warnf(e *Entity, field, format string, a ...any) {
	r.Warnings = append(r.Warnings, &Issue{Entity: e.Name, Field: field, Message: fmt.Sprintf(format, a...)})
}

// Validate checks the catalog for dangling references and reports fields
// of unknown kind, which the schema builder drops.
func (c *Catalog) Validate() *ValidationResult {
	r := &ValidationResult{}
	for _, e := range c.entities {
		validateEntity(c, e, r)
	}
	return r
}

func validateEntity(c *Catalog, e *Entity, r *ValidationResult) {
	if e.Name == "" {
		r.Errors = append(r.Errors, &Issue{Entity: "<unnamed>", Message: "entity has no name"})
		return
	}
	seen := make(map[string]bool)
	mapped := 0
	for _, f := range e.Fields {
		if seen[f.Name] {
			r.errorf(e, f.Name, "duplicate field name")
		}
		seen[f.Name] = true
		if f.Kind.Known() {
			mapped++
		} else {
			r.warnf(e, f.Name, "unknown kind %q: field is not exposed", f.Kind)
		}
	}
	for _, a := range e.Associations {
		if seen[a.Name] {
			r.errorf(e, a.Name, "duplicate field name")
		}
		seen[a.Name] = true
		if _, ok := assocNames[a.Type]; !ok {
			r.errorf(e, a.Name, "missing association type")
		}
		target, ok := c.Get(a.Target)
		if !ok {
			r.errorf(e, a.Name, "unknown target entity %q", a.Target)
			continue
		}
		if a.Type == OneToMany && a.MappedBy == "" {
			r.errorf(e, a.Name, "one-to-many association requires mappedBy")
		}
		if a.MappedBy != "" {
			if _, ok := target.Association(a.MappedBy); !ok {
				r.errorf(e, a.Name, "mappedBy %q not found on %s", a.MappedBy, target.Name)
			}
		}
	}
	if e.Abstract {
		return
	}
	if mapped == 0 {
		r.warnf(e, "", "no mappable scalar fields: entity is not exposed")
	}
	if len(e.Identifier) == 0 {
		r.errorf(e, "", "missing identifier")
	}
	for _, id := range e.Identifier {
		if _, ok := e.Field(id); ok {
			continue
		}
		a, ok := e.Association(id)
		switch {
		case !ok:
			r.errorf(e, id, "identifier is neither a field nor an association")
		case a.IsCollection() || !a.IsOwningSide():
			r.errorf(e, id, "identifier association must be an owning single-valued association")
		}
	}
}
