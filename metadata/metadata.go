// Package metadata describes persisted entities: their scalar fields,
// associations and identifiers. It is the input of the schema builder and
// the contract the SQL store is driven by.
package metadata

import (
	"fmt"
	"strings"
)

// Kind is the storage type tag of a scalar field.
type Kind string

// Scalar kinds that map to GraphQL scalars.
const (
	Integer    Kind = "integer"
	BigInt     Kind = "bigint"
	SmallInt   Kind = "smallint"
	Float      Kind = "float"
	Decimal    Kind = "decimal"
	Boolean    Kind = "boolean"
	UUID       Kind = "uuid"
	String     Kind = "string"
	Text       Kind = "text"
	Date       Kind = "date"
	Time       Kind = "time"
	DateTime   Kind = "datetime"
	DateTimeTZ Kind = "datetimetz"
)

var kinds = map[Kind]struct{}{
	Integer: {}, BigInt: {}, SmallInt: {}, Float: {}, Decimal: {}, Boolean: {},
	UUID: {}, String: {}, Text: {}, Date: {}, Time: {}, DateTime: {}, DateTimeTZ: {},
}

// Known reports if k belongs to the closed set of mapped kinds.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// IsNumeric reports if k stores a number.
func (k Kind) IsNumeric() bool {
	switch k {
	case Integer, BigInt, SmallInt, Float, Decimal:
		return true
	}
	return false
}

// IsTime reports if k stores a date or time.
func (k Kind) IsTime() bool {
	switch k {
	case Date, Time, DateTime, DateTimeTZ:
		return true
	}
	return false
}

// Field is a scalar column of an entity.
type Field struct {
	Name      string `yaml:"name"`
	Column    string `yaml:"column"`
	Kind      Kind   `yaml:"kind"`
	Nullable  bool   `yaml:"nullable"`
	Generated bool   `yaml:"generated"` // database-assigned, e.g. auto increment
}

// ColumnName returns the column of the field, defaulting to its name.
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// JoinColumn is one column of a foreign key.
type JoinColumn struct {
	Name             string `yaml:"name"`
	ReferencedColumn string `yaml:"referencedColumn"`
	Nullable         *bool  `yaml:"nullable"`
}

// IsNullable reports the nullability of the join column. Join columns are
// nullable unless declared otherwise.
func (c JoinColumn) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// JoinTable is the link table of a many-to-many association.
type JoinTable struct {
	Name               string       `yaml:"name"`
	JoinColumns        []JoinColumn `yaml:"joinColumns"`
	InverseJoinColumns []JoinColumn `yaml:"inverseJoinColumns"`
}

// AssociationType is the cardinality pair of an association.
type AssociationType int

// Association types.
const (
	ManyToOne AssociationType = iota + 1
	OneToOne
	OneToMany
	ManyToMany
)

var assocNames = map[AssociationType]string{
	ManyToOne:  "manyToOne",
	OneToOne:   "oneToOne",
	OneToMany:  "oneToMany",
	ManyToMany: "manyToMany",
}

// String implements fmt.Stringer.
func (t AssociationType) String() string {
	if s, ok := assocNames[t]; ok {
		return s
	}
	return fmt.Sprintf("AssociationType(%d)", int(t))
}

// ParseAssociationType parses the mapping spelling of an association type.
func ParseAssociationType(s string) (AssociationType, error) {
	for t, name := range assocNames {
		if strings.EqualFold(name, s) || strings.EqualFold(strings.ReplaceAll(s, "_", ""), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("metadata: unknown association type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AssociationType) UnmarshalText(text []byte) error {
	v, err := ParseAssociationType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t AssociationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsCollection reports if the association holds many targets.
func (t AssociationType) IsCollection() bool {
	return t == OneToMany || t == ManyToMany
}

// Association is a relationship field between two entities.
type Association struct {
	Name        string          `yaml:"name"`
	Target      string          `yaml:"target"`
	Type        AssociationType `yaml:"type"`
	MappedBy    string          `yaml:"mappedBy"`
	InversedBy  string          `yaml:"inversedBy"`
	JoinColumns []JoinColumn    `yaml:"joinColumns"`
	JoinTable   *JoinTable      `yaml:"joinTable"`
}

// IsCollection reports if the association is collection-valued.
func (a *Association) IsCollection() bool {
	return a.Type.IsCollection()
}

// IsOwningSide reports if this side carries the join columns. Many-to-one
// is always owning, one-to-many never, the others unless mapped by the
// other side.
func (a *Association) IsOwningSide() bool {
	switch a.Type {
	case ManyToOne:
		return true
	case OneToMany:
		return false
	default:
		return a.MappedBy == ""
	}
}

// Entity describes one persisted entity kind.
type Entity struct {
	// Name is the fully qualified entity name, e.g. App\Entity\User.
	Name         string         `yaml:"name"`
	Table        string         `yaml:"table"`
	Abstract     bool           `yaml:"abstract"`
	Fields       []*Field       `yaml:"fields"`
	Associations []*Association `yaml:"associations"`
	Identifier   []string       `yaml:"identifier"`
}

// Field returns the scalar field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Association returns the association with the given name.
func (e *Entity) Association(name string) (*Association, bool) {
	for _, a := range e.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// HasAssociation reports if name is an association of e.
func (e *Entity) HasAssociation(name string) bool {
	_, ok := e.Association(name)
	return ok
}

// IsIdentifier reports if name is one of the identifier fields.
func (e *Entity) IsIdentifier(name string) bool {
	for _, id := range e.Identifier {
		if id == name {
			return true
		}
	}
	return false
}

// ShortName returns the entity name without its namespace.
func (e *Entity) ShortName() string {
	name := e.Name
	if i := strings.LastIndexAny(name, `\./`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// TableName returns the table of the entity, defaulting to the snake
// cased short name.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return snake(e.ShortName())
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
