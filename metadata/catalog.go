package metadata

import "fmt"

// Catalog is an ordered, name-keyed set of entities. Iteration follows
// insertion order, which keeps schema generation deterministic.
type Catalog struct {
	entities []*Entity
	index    map[string]int
}

// NewCatalog returns a catalog holding the given entities.
func NewCatalog(entities ...*Entity) *Catalog {
	c := &Catalog{index: make(map[string]int)}
	for _, e := range entities {
		c.Add(e)
	}
	return c
}

// Add inserts e, replacing an entity registered under the same name.
func (c *Catalog) Add(e *Entity) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[e.Name]; ok {
		c.entities[i] = e
		return
	}
	c.index[e.Name] = len(c.entities)
	c.entities = append(c.entities, e)
}

// Get returns the entity with the given fully qualified name.
func (c *Catalog) Get(name string) (*Entity, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.entities[i], true
}

// All returns the entities in insertion order.
func (c *Catalog) All() []*Entity {
	return c.entities
}

// Len returns the number of entities.
func (c *Catalog) Len() int {
	return len(c.entities)
}

// Owning returns the owning side of the association a declared on e,
// along with the entity that declares it. For an owning side this is
// (e, a) itself.
func (c *Catalog) Owning(e *Entity, a *Association) (*Entity, *Association, error) {
	if a.IsOwningSide() {
		return e, a, nil
	}
	target, ok := c.Get(a.Target)
	if !ok {
		return nil, nil, fmt.Errorf("metadata: %s.%s: unknown target %q", e.Name, a.Name, a.Target)
	}
	owner, ok := target.Association(a.MappedBy)
	if !ok {
		return nil, nil, fmt.Errorf("metadata: %s.%s: mappedBy %q not found on %s", e.Name, a.Name, a.MappedBy, target.Name)
	}
	return target, owner, nil
}

// LinkColumns returns the join table of the many-to-many association a
// declared on e, seen from e: the columns referencing e and the columns
// referencing the target.
func (c *Catalog) LinkColumns(e *Entity, a *Association) (*JoinTable, []JoinColumn, []JoinColumn, error) {
	_, owner, err := c.Owning(e, a)
	if err != nil {
		return nil, nil, nil, err
	}
	jt := owner.JoinTable
	if jt == nil {
		return nil, nil, nil, fmt.Errorf("metadata: %s.%s: no join table", e.Name, a.Name)
	}
	if owner == a {
		return jt, jt.JoinColumns, jt.InverseJoinColumns, nil
	}
	return jt, jt.InverseJoinColumns, jt.JoinColumns, nil
}

// Nullable reports whether the association a of e may be absent. The
// owning side's join columns decide: the association is nullable unless a
// participating join column is declared non-nullable.
func (c *Catalog) Nullable(e *Entity, a *Association) bool {
	_, owner, err := c.Owning(e, a)
	if err != nil {
		return true
	}
	cols := owner.JoinColumns
	if len(cols) == 0 && owner.JoinTable != nil {
		cols = owner.JoinTable.JoinColumns
	}
	for _, col := range cols {
		if !col.IsNullable() {
			return false
		}
	}
	return true
}

// IdentifierColumns returns the columns holding the identifier of e, in
// identifier order. Association identifiers contribute their join columns.
func (c *Catalog) IdentifierColumns(e *Entity) []string {
	var cols []string
	for _, id := range e.Identifier {
		if f, ok := e.Field(id); ok {
			cols = append(cols, f.ColumnName())
			continue
		}
		if a, ok := e.Association(id); ok {
			for _, jc := range a.JoinColumns {
				cols = append(cols, jc.Name)
			}
		}
	}
	return cols
}

// Resolve fills in mapping defaults that depend on other entities: join
// columns of owning single-valued associations and join tables of owning
// many-to-many associations.
func (c *Catalog) Resolve() error {
	for _, e := range c.entities {
		for _, f := range e.Fields {
			if f.Column == "" {
				f.Column = f.Name
			}
		}
		if e.Table == "" {
			e.Table = e.TableName()
		}
	}
	for _, e := range c.entities {
		for _, a := range e.Associations {
			if !a.IsOwningSide() {
				continue
			}
			target, ok := c.Get(a.Target)
			if !ok {
				continue
			}
			switch a.Type {
			case ManyToOne, OneToOne:
				if len(a.JoinColumns) > 0 {
					continue
				}
				for _, ref := range c.IdentifierColumns(target) {
					a.JoinColumns = append(a.JoinColumns, JoinColumn{
						Name:             snake(a.Name) + "_" + ref,
						ReferencedColumn: ref,
					})
				}
			case ManyToMany:
				if a.JoinTable == nil {
					a.JoinTable = &JoinTable{}
				}
				jt := a.JoinTable
				if jt.Name == "" {
					jt.Name = e.TableName() + "_" + target.TableName()
				}
				if len(jt.JoinColumns) == 0 {
					for _, ref := range c.IdentifierColumns(e) {
						jt.JoinColumns = append(jt.JoinColumns, JoinColumn{
							Name:             e.TableName() + "_" + ref,
							ReferencedColumn: ref,
						})
					}
				}
				if len(jt.InverseJoinColumns) == 0 {
					for _, ref := range c.IdentifierColumns(target) {
						jt.InverseJoinColumns = append(jt.InverseJoinColumns, JoinColumn{
							Name:             target.TableName() + "_" + ref,
							ReferencedColumn: ref,
						})
					}
				}
			}
		}
	}
	return c.Validate().Err()
}
