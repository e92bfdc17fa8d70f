package sql

import "fmt"

// Op is a comparison operator of a binary predicate.
type Op string

// Comparison operators.
const (
	OpEQ  Op = "="
	OpNEQ Op = "<>"
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="
)

// Valid reports if op is one of the known comparison operators.
func (op Op) Valid() bool {
	switch op {
	case OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// Predicate is a where predicate. It renders itself into a Builder, so
// nested predicates share the placeholder numbering of the statement.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new predicate from raw builder functions.
//
//	P(func(b *Builder) {
//		b.Ident("name").WriteString(" = ").Arg("a8m")
//	})
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

func (p *Predicate) empty() bool {
	return p == nil || len(p.fns) == 0
}

func (p *Predicate) build(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// Query renders the predicate for the given dialect.
func (p *Predicate) Query(dialect string) (string, []any) {
	b := &Builder{dialect: dialect}
	p.build(b)
	return b.Query()
}

// Compare returns a binary predicate "col op ?".
func Compare(col string, op Op, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" " + string(op) + " ").Arg(v)
	})
}

// EQ returns a "=" predicate.
func EQ(col string, v any) *Predicate { return Compare(col, OpEQ, v) }

// NEQ returns a "<>" predicate.
func NEQ(col string, v any) *Predicate { return Compare(col, OpNEQ, v) }

// GT returns a ">" predicate.
func GT(col string, v any) *Predicate { return Compare(col, OpGT, v) }

// GTE returns a ">=" predicate.
func GTE(col string, v any) *Predicate { return Compare(col, OpGTE, v) }

// LT returns a "<" predicate.
func LT(col string, v any) *Predicate { return Compare(col, OpLT, v) }

// LTE returns a "<=" predicate.
func LTE(col string, v any) *Predicate { return Compare(col, OpLTE, v) }

// ColumnsEQ returns a predicate comparing two columns, used in join
// conditions.
func ColumnsEQ(c1, c2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(c1).WriteString(" = ").Ident(c2)
	})
}

// In returns an "IN" predicate. An empty list never matches.
func In(col string, vs ...any) *Predicate {
	if len(vs) == 0 {
		return False()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN ").Wrap(func(b *Builder) { b.Args(vs...) })
	})
}

// IsNull returns an "IS NULL" predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NULL") })
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") })
}

// False returns a predicate that never matches.
func False() *Predicate {
	return P(func(b *Builder) { b.WriteString("1 = 0") })
}

// And combines predicates with AND. Empty predicates are ignored.
func And(preds ...*Predicate) *Predicate { return group("AND", preds) }

// Or combines predicates with OR. Empty predicates are ignored.
func Or(preds ...*Predicate) *Predicate { return group("OR", preds) }

// Not negates the given predicate.
func Not(pred *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(pred.build)
	})
}

func group(op string, preds []*Predicate) *Predicate {
	var ps []*Predicate
	for _, p := range preds {
		if !p.empty() {
			ps = append(ps, p)
		}
	}
	switch len(ps) {
	case 0:
		return P()
	case 1:
		return ps[0]
	}
	return P(func(b *Builder) {
		b.Wrap(func(b *Builder) {
			for i, p := range ps {
				if i > 0 {
					b.WriteString(" " + op + " ")
				}
				p.build(b)
			}
		})
	})
}

// String implements fmt.Stringer for debugging.
func (p *Predicate) String() string {
	q, args := p.Query("")
	return fmt.Sprintf("%s %v", q, args)
}
