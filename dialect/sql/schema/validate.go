package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"
)

// Issue is one finding of a validation.
type Issue struct {
	Table   string
	Column  string
	Message string
	// Breaking marks changes that may lose data or fail on existing rows.
	Breaking bool
}

func (i *Issue) Error() string {
	if i.Column != "" {
		return fmt.Sprintf("%s.%s: %s", i.Table, i.Column, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Table, i.Message)
}

// ValidationResult holds the findings of a validation.
type ValidationResult struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors reports if the validation failed.
func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

// HasWarnings reports if the validation found anything worth reporting.
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// HasBreakingChanges reports if any finding is breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, i := range append(r.Errors[:len(r.Errors):len(r.Errors)], r.Warnings...) {
		if i.Breaking {
			return true
		}
	}
	return false
}

func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "no issues found"
	}
	var b strings.Builder
	for _, group := range []struct {
		title  string
		issues []*Issue
	}{{"errors", r.Errors}, {"warnings", r.Warnings}} {
		if len(group.issues) == 0 {
			continue
		}
		b.WriteString(group.title + ":\n")
		for _, i := range group.issues {
			b.WriteString("  - " + i.Error())
			if i.Breaking {
				b.WriteString(" [breaking]")
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// report files i as an error, or as a warning when allowed.
func (r *ValidationResult) report(i *Issue, allowed bool) {
	if allowed {
		r.Warnings = append(r.Warnings, i)
	} else {
		r.Errors = append(r.Errors, i)
	}
}

// ValidateOption relaxes a validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn reports dropped columns as warnings.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) { c.allowDropColumn = true }
}

// AllowDropIndex reports dropped indexes as warnings.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) { c.allowDropIndex = true }
}

// AllowNullToNotNull reports columns becoming NOT NULL as warnings.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) { c.allowNullToNotNull = true }
}

// ValidateChanges classifies a diff. Removals and columns becoming NOT
// NULL are errors unless allowed; type changes, unique indexes and NOT
// NULL columns added without a default are warnings.
//
//	res := schema.ValidateChanges(changes, schema.AllowDropIndex())
//	if res.HasErrors() {
//		return errors.New(res.String())
//	}
func ValidateChanges(changes []schema.Change, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	r := &ValidationResult{}
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropTable:
			r.Errors = append(r.Errors, &Issue{Table: c.T.Name, Message: "table will be dropped", Breaking: true})
		case *schema.ModifyTable:
			validateTableChanges(c.T.Name, c.Changes, cfg, r)
		}
	}
	return r
}

func validateTableChanges(table string, changes []schema.Change, cfg *validateConfig, r *ValidationResult) {
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropColumn:
			r.report(&Issue{Table: table, Column: c.C.Name, Message: "column will be dropped", Breaking: true}, cfg.allowDropColumn)
		case *schema.AddColumn:
			if c.C.Type != nil && !c.C.Type.Null && c.C.Default == nil {
				r.Warnings = append(r.Warnings, &Issue{
					Table:   table,
					Column:  c.C.Name,
					Message: "new NOT NULL column without default fails on a non-empty table",
				})
			}
		case *schema.ModifyColumn:
			if c.Change.Is(schema.ChangeType) {
				r.Warnings = append(r.Warnings, &Issue{
					Table:   table,
					Column:  c.To.Name,
					Message: fmt.Sprintf("column type changes from %s to %s", typeName(c.From), typeName(c.To)),
				})
			}
			if c.Change.Is(schema.ChangeNull) && c.From.Type.Null && !c.To.Type.Null {
				r.report(&Issue{
					Table:    table,
					Column:   c.To.Name,
					Message:  "column becomes NOT NULL and fails on existing NULL values",
					Breaking: true,
				}, cfg.allowNullToNotNull)
			}
		case *schema.DropIndex:
			r.report(&Issue{Table: table, Message: fmt.Sprintf("index %q will be dropped", c.I.Name)}, cfg.allowDropIndex)
		case *schema.DropForeignKey:
			r.report(&Issue{Table: table, Message: fmt.Sprintf("foreign key %q will be dropped", c.F.Symbol)}, cfg.allowDropIndex)
		case *schema.AddIndex:
			if c.I.Unique {
				r.Warnings = append(r.Warnings, &Issue{
					Table:   table,
					Message: fmt.Sprintf("unique index %q fails on duplicate values", c.I.Name),
				})
			}
		}
	}
}

func typeName(c *schema.Column) string {
	if c.Type == nil {
		return "unknown"
	}
	if c.Type.Raw != "" {
		return c.Type.Raw
	}
	return fmt.Sprintf("%T", c.Type.Type)
}

// ValidateTables checks the consistency of derived tables: unique table,
// column and index names, and keys referencing existing columns.
func ValidateTables(tables []*Table) *ValidationResult {
	r := &ValidationResult{}
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if seen[t.Name] {
			r.Errors = append(r.Errors, &Issue{Table: t.Name, Message: "duplicate table name"})
		}
		seen[t.Name] = true
		validateTable(t, r)
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == nil || !seen[fk.RefTable.Name] {
				r.Errors = append(r.Errors, &Issue{Table: t.Name, Message: fmt.Sprintf("foreign key %q references an unknown table", fk.Symbol)})
			}
		}
	}
	return r
}

func validateTable(t *Table, r *ValidationResult) {
	if len(t.PrimaryKey) == 0 {
		r.Warnings = append(r.Warnings, &Issue{Table: t.Name, Message: "table has no primary key"})
	}
	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if cols[c.Name] {
			r.Errors = append(r.Errors, &Issue{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
		}
		cols[c.Name] = true
	}
	missing := func(what string, cs []*Column) {
		for _, c := range cs {
			if !cols[c.Name] {
				r.Errors = append(r.Errors, &Issue{Table: t.Name, Column: c.Name, Message: what + " references an unknown column"})
			}
		}
	}
	missing("primary key", t.PrimaryKey)
	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if indexes[idx.Name] {
			r.Errors = append(r.Errors, &Issue{Table: t.Name, Message: fmt.Sprintf("duplicate index name %q", idx.Name)})
		}
		indexes[idx.Name] = true
		missing(fmt.Sprintf("index %q", idx.Name), idx.Columns)
	}
	for _, fk := range t.ForeignKeys {
		missing(fmt.Sprintf("foreign key %q", fk.Symbol), fk.Columns)
		if len(fk.Columns) != len(fk.RefColumns) {
			r.Errors = append(r.Errors, &Issue{Table: t.Name, Message: fmt.Sprintf("foreign key %q has %d columns for %d referenced", fk.Symbol, len(fk.Columns), len(fk.RefColumns))})
		}
	}
}
