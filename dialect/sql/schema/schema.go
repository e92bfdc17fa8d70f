// Package schema derives the tables of an entity catalog and creates or
// plans them with Atlas.
//
//	tables, err := schema.FromCatalog(catalog)
//	m, err := schema.NewMigrate(drv)
//	err = m.Create(ctx, tables...)
package schema

import (
	"fmt"

	"github.com/syssam/gqlmap/metadata"
)

// Table is a table derived from entity metadata.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index
}

// Column is a table column.
type Column struct {
	Name      string
	Kind      metadata.Kind
	Nullable  bool
	Increment bool
	Unique    bool
}

// ForeignKey references the primary key of another table.
type ForeignKey struct {
	Symbol     string
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
}

// Index is a table index.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (t *Table) addColumn(c *Column) *Column {
	if cur, ok := t.Column(c.Name); ok {
		cur.Nullable = cur.Nullable && c.Nullable
		return cur
	}
	t.Columns = append(t.Columns, c)
	return c
}

// FromCatalog returns the tables of the concrete entities of c followed by
// the link tables of their many-to-many associations.
func FromCatalog(c *metadata.Catalog) ([]*Table, error) {
	var (
		tables []*Table
		byName = make(map[string]*Table)
	)
	for _, e := range c.All() {
		if e.Abstract {
			continue
		}
		t := &Table{Name: e.TableName()}
		for _, f := range e.Fields {
			col := t.addColumn(&Column{
				Name:      f.ColumnName(),
				Kind:      f.Kind,
				Nullable:  f.Nullable,
				Increment: f.Generated && f.Kind.IsNumeric(),
			})
			if e.IsIdentifier(f.Name) {
				col.Nullable = false
				t.PrimaryKey = append(t.PrimaryKey, col)
			}
		}
		tables = append(tables, t)
		byName[e.Name] = t
	}
	for _, e := range c.All() {
		t, ok := byName[e.Name]
		if !ok {
			continue
		}
		for _, a := range e.Associations {
			if !a.IsOwningSide() {
				continue
			}
			target, ok := c.Get(a.Target)
			if !ok {
				return nil, fmt.Errorf("schema: %s.%s: unknown target %q", e.Name, a.Name, a.Target)
			}
			ref, ok := byName[target.Name]
			if !ok {
				continue
			}
			switch a.Type {
			case metadata.ManyToOne, metadata.OneToOne:
				fk := &ForeignKey{Symbol: fkSymbol(t.Name, a.Name), RefTable: ref}
				for _, jc := range a.JoinColumns {
					rc, ok := ref.Column(jc.ReferencedColumn)
					if !ok {
						return nil, fmt.Errorf("schema: %s.%s: unknown referenced column %q", e.Name, a.Name, jc.ReferencedColumn)
					}
					col := t.addColumn(&Column{Name: jc.Name, Kind: rc.Kind, Nullable: jc.IsNullable()})
					if e.IsIdentifier(a.Name) {
						col.Nullable = false
						t.PrimaryKey = append(t.PrimaryKey, col)
					}
					fk.Columns = append(fk.Columns, col)
					fk.RefColumns = append(fk.RefColumns, rc)
				}
				if a.Type == metadata.OneToOne && len(fk.Columns) > 0 && !e.IsIdentifier(a.Name) {
					t.Indexes = append(t.Indexes, &Index{Name: t.Name + "_" + a.Name + "_key", Unique: true, Columns: fk.Columns})
				}
				t.ForeignKeys = append(t.ForeignKeys, fk)
			case metadata.ManyToMany:
				link, err := linkTable(c, e, a, t, ref)
				if err != nil {
					return nil, err
				}
				tables = append(tables, link)
			}
		}
	}
	return tables, nil
}

// linkTable returns the join table of the owning many-to-many association
// a of e.
func linkTable(c *metadata.Catalog, e *metadata.Entity, a *metadata.Association, owner, target *Table) (*Table, error) {
	jt, src, dst, err := c.LinkColumns(e, a)
	if err != nil {
		return nil, err
	}
	t := &Table{Name: jt.Name}
	for _, side := range []struct {
		name string
		cols []metadata.JoinColumn
		ref  *Table
	}{
		{e.ShortName(), src, owner},
		{a.Name, dst, target},
	} {
		fk := &ForeignKey{Symbol: fkSymbol(t.Name, side.name), RefTable: side.ref}
		for _, jc := range side.cols {
			rc, ok := side.ref.Column(jc.ReferencedColumn)
			if !ok {
				return nil, fmt.Errorf("schema: %s: unknown referenced column %q", jt.Name, jc.ReferencedColumn)
			}
			col := t.addColumn(&Column{Name: jc.Name, Kind: rc.Kind})
			t.PrimaryKey = append(t.PrimaryKey, col)
			fk.Columns = append(fk.Columns, col)
			fk.RefColumns = append(fk.RefColumns, rc)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t, nil
}

func fkSymbol(table, name string) string {
	return table + "_" + name + "_fk"
}
