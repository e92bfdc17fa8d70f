// Package entity holds entity instances: map-backed rows of one
// metadata.Entity, their association collections, and the accessor tables
// that read and write fields by name.
package entity

import (
	"fmt"
	"sort"

	"github.com/syssam/gqlmap/metadata"
)

// State is the lifecycle state of an instance within a unit of work.
type State int

// Instance states.
const (
	StateNew State = iota
	StateManaged
	StateRemoved
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateManaged:
		return "managed"
	case StateRemoved:
		return "removed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Entity is one instance of an entity kind. It is not safe for concurrent
// mutation; instances are scoped to one resolver invocation.
type Entity struct {
	meta    *metadata.Entity
	state   State
	values  map[string]any
	refs    map[string]*Entity
	colls   map[string]*Collection
	loaded  map[string]bool
	joins   map[string]any
	changed map[string]bool
}

// New returns a blank instance of meta in the new state.
func New(meta *metadata.Entity) *Entity {
	return &Entity{
		meta:    meta,
		values:  make(map[string]any),
		refs:    make(map[string]*Entity),
		colls:   make(map[string]*Collection),
		loaded:  make(map[string]bool),
		joins:   make(map[string]any),
		changed: make(map[string]bool),
	}
}

// Managed returns an instance in the managed state holding the given field
// values, as loaded from storage.
func Managed(meta *metadata.Entity, values map[string]any) *Entity {
	e := New(meta)
	for k, v := range values {
		e.values[k] = v
	}
	e.state = StateManaged
	return e
}

// Meta returns the entity metadata.
func (e *Entity) Meta() *metadata.Entity { return e.meta }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// SetState moves the instance to s and forgets pending changes when it
// becomes managed.
func (e *Entity) SetState(s State) {
	e.state = s
	if s == StateManaged {
		e.ClearChanges()
	}
}

// Get returns the value of the scalar field name.
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Set assigns the scalar field name and records the change if the value
// differs.
func (e *Entity) Set(name string, v any) {
	if old, ok := e.values[name]; ok && equal(old, v) {
		return
	}
	e.values[name] = v
	e.changed[name] = true
}

// Values returns a copy of the scalar field values.
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Ref returns the single-valued association name and whether it has been
// loaded or assigned.
func (e *Entity) Ref(name string) (*Entity, bool) {
	return e.refs[name], e.loaded[name]
}

// SetRef assigns the single-valued association name.
func (e *Entity) SetRef(name string, target *Entity) {
	if cur, ok := e.refs[name]; ok && cur == target && e.loaded[name] {
		return
	}
	e.refs[name] = target
	e.loaded[name] = true
	e.changed[name] = true
}

// LoadRef stores a single-valued association read from storage without
// recording a change.
func (e *Entity) LoadRef(name string, target *Entity) {
	e.refs[name] = target
	e.loaded[name] = true
}

// Collection returns the collection association name, creating an
// unloaded empty collection on first use.
func (e *Entity) Collection(name string) *Collection {
	c, ok := e.colls[name]
	if !ok {
		c = &Collection{}
		e.colls[name] = c
	}
	return c
}

// Loaded reports if the association name holds its stored state.
func (e *Entity) Loaded(name string) bool {
	if c, ok := e.colls[name]; ok {
		return c.loaded
	}
	return e.loaded[name]
}

// JoinValue returns the raw value of a join column read with the row.
func (e *Entity) JoinValue(column string) (any, bool) {
	v, ok := e.joins[column]
	return v, ok
}

// SetJoinValue records the raw value of a join column.
func (e *Entity) SetJoinValue(column string, v any) {
	e.joins[column] = v
}

// Changed returns the names of the fields and single-valued associations
// assigned since the instance was last synchronized, sorted.
func (e *Entity) Changed() []string {
	names := make([]string, 0, len(e.changed))
	for name := range e.changed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsChanged reports if the field or association name was assigned.
func (e *Entity) IsChanged(name string) bool {
	return e.changed[name]
}

// ClearChanges forgets pending field changes and collection additions.
func (e *Entity) ClearChanges() {
	for k := range e.changed {
		delete(e.changed, k)
	}
	for _, c := range e.colls {
		c.added = nil
	}
}

// ID returns the scalar identifier values keyed by field name. The second
// result is false if any identifier field is unset.
func (e *Entity) ID() (map[string]any, bool) {
	ids := make(map[string]any, len(e.meta.Identifier))
	complete := true
	for _, name := range e.meta.Identifier {
		if v, ok := e.values[name]; ok && v != nil {
			ids[name] = v
			continue
		}
		if ref, ok := e.refs[name]; ok && ref != nil {
			ids[name] = ref
			continue
		}
		complete = false
	}
	return ids, complete
}

// String implements fmt.Stringer.
func (e *Entity) String() string {
	ids, _ := e.ID()
	return fmt.Sprintf("%s(%v)", e.meta.ShortName(), ids)
}

// Collection is a collection-valued association. Items keep insertion
// order and are unique by instance.
type Collection struct {
	items  []*Entity
	added  []*Entity
	loaded bool
}

// NewCollection returns a loaded collection holding items.
func NewCollection(items ...*Entity) *Collection {
	c := &Collection{loaded: true}
	c.items = append(c.items, items...)
	return c
}

// Items returns the members of the collection.
func (c *Collection) Items() []*Entity { return c.items }

// Len returns the number of members.
func (c *Collection) Len() int { return len(c.items) }

// Contains reports if e is a member.
func (c *Collection) Contains(e *Entity) bool {
	for _, it := range c.items {
		if it == e {
			return true
		}
	}
	return false
}

// Add appends e and records it as a pending addition unless it is
// already a member.
func (c *Collection) Add(e *Entity) {
	if c.Contains(e) {
		return
	}
	c.items = append(c.items, e)
	c.added = append(c.added, e)
}

// Added returns the members added since the collection was loaded.
func (c *Collection) Added() []*Entity { return c.added }

// Load replaces the members with stored state, keeping pending additions.
func (c *Collection) Load(items []*Entity) {
	pending := c.added
	c.items = append([]*Entity(nil), items...)
	c.loaded = true
	for _, e := range pending {
		if !c.Contains(e) {
			c.items = append(c.items, e)
		}
	}
}

// IsLoaded reports if the collection holds its stored state.
func (c *Collection) IsLoaded() bool { return c.loaded }

func equal(a, b any) bool {
	switch a.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return a == b
	}
	if s, ok := a.(fmt.Stringer); ok {
		if t, ok := b.(fmt.Stringer); ok {
			return s.String() == t.String()
		}
	}
	return false
}
