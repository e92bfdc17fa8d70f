package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/gqlmap/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. It accumulates
// the statement text and its arguments, and quotes identifiers and
// numbers placeholders according to the dialect.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// Dialect returns a new Builder bound to the given dialect.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// DialectBuilder prefixes all root builders with the dialect name.
type DialectBuilder struct {
	dialect string
}

// Select returns a new Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: columns}
}

// Insert returns a new InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update returns a new UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete returns a new DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// WriteString appends raw SQL.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier. Qualified identifiers ("t.c") are
// quoted part by part and "*" is written as is.
func (b *Builder) Ident(s string) *Builder {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		if p == "*" {
			b.sb.WriteByte('*')
			continue
		}
		b.sb.WriteString(b.Quote(p))
	}
	return b
}

// IdentComma appends a comma separated list of quoted identifiers.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Quote quotes a single identifier part.
func (b *Builder) Quote(ident string) string {
	if b.dialect == dialect.MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Arg appends an argument placeholder and records its value.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends a comma separated list of placeholders.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Wrap writes the given function output wrapped in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	f(b)
	b.sb.WriteByte(')')
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// Direction is the sort direction of an ORDER BY term.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type (
	order struct {
		column string
		dir    Direction
	}
	join struct {
		kind  string
		table string
		alias string
		on    *Predicate
	}
)

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	dialect  string
	distinct bool
	columns  []string
	as       map[string]string
	table    string
	alias    string
	joins    []join
	where    *Predicate
	order    []order
	limit    *int
	offset   *int
}

// Select returns a new Selector for the default (SQLite) dialect.
func Select(columns ...string) *Selector {
	return Dialect(dialect.SQLite).Select(columns...)
}

// From sets the source table of the selector.
func (s *Selector) From(table, alias string) *Selector {
	s.table, s.alias = table, alias
	return s
}

// Table returns the source table name.
func (s *Selector) Table() string { return s.table }

// Alias returns the source table alias.
func (s *Selector) Alias() string { return s.alias }

// Columns sets the selected columns.
func (s *Selector) Columns(columns ...string) *Selector {
	s.columns = columns
	return s
}

// AppendAs appends a column selected under another name.
func (s *Selector) AppendAs(column, as string) *Selector {
	if s.as == nil {
		s.as = make(map[string]string)
	}
	s.columns = append(s.columns, column)
	s.as[column] = as
	return s
}

// Distinct adds the DISTINCT keyword to the SELECT statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// IsDistinct reports if the selector selects distinct rows.
func (s *Selector) IsDistinct() bool { return s.distinct }

// Join appends an INNER JOIN clause.
func (s *Selector) Join(table, alias string, on *Predicate) *Selector {
	s.joins = append(s.joins, join{kind: "JOIN", table: table, alias: alias, on: on})
	return s
}

// LeftJoin appends a LEFT JOIN clause.
func (s *Selector) LeftJoin(table, alias string, on *Predicate) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: table, alias: alias, on: on})
	return s
}

// Where sets or extends the WHERE clause. Successive calls are AND-ed.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil || p.empty() {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// OrderBy appends an ORDER BY term.
func (s *Selector) OrderBy(column string, dir Direction) *Selector {
	s.order = append(s.order, order{column: column, dir: dir})
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Clone returns a copy of the selector sharing its predicates.
func (s *Selector) Clone() *Selector {
	c := *s
	c.columns = append([]string(nil), s.columns...)
	if s.as != nil {
		c.as = make(map[string]string, len(s.as))
		for k, v := range s.as {
			c.as[k] = v
		}
	}
	c.joins = append([]join(nil), s.joins...)
	c.order = append([]order(nil), s.order...)
	return &c
}

// CountSelector returns a selector counting the rows matched by s.
// When s is distinct, the given columns identify a row and the count
// runs over a distinct subquery.
func (s *Selector) CountSelector(columns ...string) Querier {
	inner := s.Clone()
	inner.order, inner.limit, inner.offset = nil, nil, nil
	if !s.distinct {
		inner.columns = []string{"COUNT(*)"}
		return inner
	}
	inner.columns = columns
	return &countQuery{inner: inner}
}

type countQuery struct {
	inner *Selector
}

func (c *countQuery) Query() (string, []any) {
	b := &Builder{dialect: c.inner.dialect}
	b.WriteString("SELECT COUNT(*) FROM ")
	b.Wrap(func(b *Builder) { c.inner.build(b) })
	b.WriteString(" AS ").Ident("t")
	return b.Query()
}

// Query returns the statement text and its arguments.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	s.build(b)
	return b.Query()
}

func (s *Selector) build(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if isRaw(c) {
			b.WriteString(c)
		} else {
			b.Ident(c)
		}
		if as := s.as[c]; as != "" {
			b.WriteString(" AS ").Ident(as)
		}
	}
	b.WriteString(" FROM ").Ident(s.table)
	if s.alias != "" {
		b.WriteString(" AS ").Ident(s.alias)
	}
	for _, j := range s.joins {
		b.WriteString(" " + j.kind + " ").Ident(j.table)
		if j.alias != "" {
			b.WriteString(" AS ").Ident(j.alias)
		}
		if j.on != nil && !j.on.empty() {
			b.WriteString(" ON ")
			j.on.build(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.build(b)
	}
	for i, o := range s.order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.Ident(o.column).WriteString(" " + string(o.dir))
	}
	if s.limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		// MySQL and SQLite reject OFFSET without LIMIT.
		switch {
		case s.limit != nil || s.dialect == dialect.Postgres:
		case s.dialect == dialect.MySQL:
			b.WriteString(" LIMIT 18446744073709551615")
		default:
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET " + strconv.Itoa(*s.offset))
	}
}

// isRaw reports if a column expression must be written without quoting.
func isRaw(c string) bool {
	return strings.ContainsAny(c, "( ")
}

// InsertBuilder is a builder for the `INSERT INTO` statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning []string
}

// Set appends a column and its value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds the RETURNING clause (Postgres and SQLite).
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the statement text and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) > 0:
		b.WriteString(" ").Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
		b.WriteString(" VALUES ").Wrap(func(b *Builder) { b.Args(i.values...) })
	case i.dialect == dialect.MySQL:
		b.WriteString(" () VALUES ()")
	default:
		b.WriteString(" DEFAULT VALUES")
	}
	if len(i.returning) > 0 && i.dialect != dialect.MySQL {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b.Query()
}

// UpdateBuilder is a builder for the `UPDATE` statement.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Set appends a column assignment.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Empty reports whether the update has no assignments.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where sets or extends the WHERE clause.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Query returns the statement text and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.build(b)
	}
	return b.Query()
}

// DeleteBuilder is a builder for the `DELETE` statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Where sets or extends the WHERE clause.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns the statement text and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.build(b)
	}
	return b.Query()
}
