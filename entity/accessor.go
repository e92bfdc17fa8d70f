package entity

import (
	"github.com/syssam/gqlmap/metadata"
)

// Accessor reads and writes one field of an instance.
type Accessor struct {
	// Assoc is set for association fields.
	Assoc *metadata.Association
	Get   func(*Entity) any
	Set   func(*Entity, any)
}

// Accessors is the field accessor table of one entity kind.
type Accessors map[string]Accessor

// Table holds the accessor tables of every entity of a catalog. It is
// built once and read concurrently afterwards.
type Table struct {
	entities map[string]Accessors
}

// NewTable builds the accessor tables of c.
func NewTable(c *metadata.Catalog) *Table {
	t := &Table{entities: make(map[string]Accessors, c.Len())}
	for _, e := range c.All() {
		t.entities[e.Name] = accessors(e)
	}
	return t
}

// Lookup returns the accessor of field on entity.
func (t *Table) Lookup(entity, field string) (Accessor, bool) {
	acc, ok := t.entities[entity][field]
	return acc, ok
}

// Entity returns the accessor table of entity.
func (t *Table) Entity(entity string) (Accessors, bool) {
	acc, ok := t.entities[entity]
	return acc, ok
}

func accessors(e *metadata.Entity) Accessors {
	acc := make(Accessors, len(e.Fields)+len(e.Associations))
	for _, f := range e.Fields {
		name := f.Name
		acc[name] = Accessor{
			Get: func(x *Entity) any {
				v, _ := x.Get(name)
				return v
			},
			Set: func(x *Entity, v any) { x.Set(name, v) },
		}
	}
	for _, a := range e.Associations {
		name := a.Name
		if a.IsCollection() {
			acc[name] = Accessor{
				Assoc: a,
				Get:   func(x *Entity) any { return x.Collection(name) },
				Set: func(x *Entity, v any) {
					c := x.Collection(name)
					switch v := v.(type) {
					case *Entity:
						c.Add(v)
					case []*Entity:
						for _, it := range v {
							c.Add(it)
						}
					}
				},
			}
			continue
		}
		acc[name] = Accessor{
			Assoc: a,
			Get: func(x *Entity) any {
				ref, _ := x.Ref(name)
				if ref == nil {
					return nil
				}
				return ref
			},
			Set: func(x *Entity, v any) {
				ref, _ := v.(*Entity)
				x.SetRef(name, ref)
			},
		}
	}
	return acc
}
