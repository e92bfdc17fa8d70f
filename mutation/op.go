package mutation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/gqlmap/entity"
)

// Op is the operation of a mutation. Values are bit flags so a rule can
// match several operations at once.
type Op uint

// Mutation operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpDelete
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "OpCreate"},
	{OpUpdate, "OpUpdate"},
	{OpDelete, "OpDelete"},
}

// Is reports whether o matches any operation of op.
func (o Op) Is(op Op) bool { return o&op != 0 }

// String implements fmt.Stringer.
func (o Op) String() string {
	var names []string
	for _, n := range opNames {
		if o.Is(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Op(%d)", uint(o))
	}
	return strings.Join(names, "|")
}

// Name returns the lowercase operation name used in errors.
func (o Op) Name() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return o.String()
}

// Mutation describes a write handed to listeners.
type Mutation interface {
	Op() Op
	// Type is the short entity name.
	Type() string
	// Fields returns the fields assigned by the input, sorted.
	Fields() []string
	// Field returns the value of a field or join column of the instance.
	Field(name string) (any, bool)
	// Entity returns the instance being written.
	Entity() *entity.Entity
}

type event struct {
	op     Op
	x      *entity.Entity
	fields []string
}

// newEvent captures the assigned fields of x, including collections with
// pending additions, before the write clears them.
func newEvent(op Op, x *entity.Entity) *event {
	fields := x.Changed()
	for _, a := range x.Meta().Associations {
		if a.IsCollection() && len(x.Collection(a.Name).Added()) > 0 {
			fields = append(fields, a.Name)
		}
	}
	sort.Strings(fields)
	return &event{op: op, x: x, fields: fields}
}

func (e *event) Op() Op                 { return e.op }
func (e *event) Type() string           { return e.x.Meta().ShortName() }
func (e *event) Fields() []string       { return e.fields }
func (e *event) Entity() *entity.Entity { return e.x }

func (e *event) Field(name string) (any, bool) {
	if v, ok := e.x.Get(name); ok {
		return v, true
	}
	return e.x.JoinValue(name)
}

// Listener is notified of every write inside its transaction. An error
// rolls the mutation back.
type Listener interface {
	OnCreate(context.Context, Mutation) error
	OnUpdate(context.Context, Mutation) error
	OnDelete(context.Context, Mutation) error
}

// ListenerFuncs adapts functions to a Listener. Nil functions accept.
type ListenerFuncs struct {
	Create func(context.Context, Mutation) error
	Update func(context.Context, Mutation) error
	Delete func(context.Context, Mutation) error
}

// OnCreate calls f.Create.
func (f ListenerFuncs) OnCreate(ctx context.Context, m Mutation) error {
	if f.Create == nil {
		return nil
	}
	return f.Create(ctx, m)
}

// OnUpdate calls f.Update.
func (f ListenerFuncs) OnUpdate(ctx context.Context, m Mutation) error {
	if f.Update == nil {
		return nil
	}
	return f.Update(ctx, m)
}

// OnDelete calls f.Delete.
func (f ListenerFuncs) OnDelete(ctx context.Context, m Mutation) error {
	if f.Delete == nil {
		return nil
	}
	return f.Delete(ctx, m)
}

// Nop is a listener accepting every mutation.
var Nop Listener = ListenerFuncs{}

// Listeners notifies each listener in order and stops at the first error.
type Listeners []Listener

// OnCreate implements Listener.
func (ls Listeners) OnCreate(ctx context.Context, m Mutation) error {
	return ls.each(func(l Listener) error { return l.OnCreate(ctx, m) })
}

// OnUpdate implements Listener.
func (ls Listeners) OnUpdate(ctx context.Context, m Mutation) error {
	return ls.each(func(l Listener) error { return l.OnUpdate(ctx, m) })
}

// OnDelete implements Listener.
func (ls Listeners) OnDelete(ctx context.Context, m Mutation) error {
	return ls.each(func(l Listener) error { return l.OnDelete(ctx, m) })
}

func (ls Listeners) each(fn func(Listener) error) error {
	for _, l := range ls {
		if l == nil {
			continue
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

func notify(ctx context.Context, l Listener, m Mutation) error {
	switch m.Op() {
	case OpCreate:
		return l.OnCreate(ctx, m)
	case OpUpdate:
		return l.OnUpdate(ctx, m)
	case OpDelete:
		return l.OnDelete(ctx, m)
	}
	return fmt.Errorf("mutation: unknown operation %s", m.Op())
}
