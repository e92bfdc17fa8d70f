package schema

import (
	"fmt"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/metadata"
)

// atlasTables converts tables into the Atlas tables of the given dialect.
func atlasTables(name string, tables []*Table) ([]*schema.Table, error) {
	var (
		out  = make([]*schema.Table, 0, len(tables))
		byTN = make(map[string]*schema.Table, len(tables))
	)
	for _, t := range tables {
		at := schema.NewTable(t.Name)
		for _, c := range t.Columns {
			typ, err := columnType(name, c.Kind)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", t.Name, c.Name, err)
			}
			ac := schema.NewColumn(c.Name).SetType(typ).SetNull(c.Nullable)
			if c.Increment && len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == c {
				if attr := increment(name); attr != nil {
					ac.AddAttrs(attr)
				}
			}
			at.AddColumns(ac)
		}
		if len(t.PrimaryKey) > 0 {
			at.SetPrimaryKey(schema.NewPrimaryKey(columns(at, t.PrimaryKey)...))
		}
		for _, idx := range t.Indexes {
			at.AddIndexes(schema.NewIndex(idx.Name).SetUnique(idx.Unique).AddColumns(columns(at, idx.Columns)...))
		}
		out = append(out, at)
		byTN[t.Name] = at
	}
	for _, t := range tables {
		at := byTN[t.Name]
		for _, fk := range t.ForeignKeys {
			ref, ok := byTN[fk.RefTable.Name]
			if !ok {
				return nil, fmt.Errorf("schema: %s: unknown referenced table %q", t.Name, fk.RefTable.Name)
			}
			at.AddForeignKeys(schema.NewForeignKey(fk.Symbol).
				AddColumns(columns(at, fk.Columns)...).
				SetRefTable(ref).
				AddRefColumns(columns(ref, fk.RefColumns)...))
		}
	}
	return out, nil
}

func columns(t *schema.Table, cs []*Column) []*schema.Column {
	out := make([]*schema.Column, 0, len(cs))
	for _, c := range cs {
		if ac, ok := t.Column(c.Name); ok {
			out = append(out, ac)
		}
	}
	return out
}

// increment returns the auto increment attribute of the dialect. SQLite
// assigns an integer primary key from the rowid without one.
func increment(name string) schema.Attr {
	switch name {
	case dialect.MySQL:
		return &mysql.AutoIncrement{}
	case dialect.Postgres:
		return &postgres.Identity{Generation: "BY DEFAULT"}
	}
	return nil
}

// columnType returns the column type storing values of kind k. Kinds
// outside the mapped set are stored as JSON.
func columnType(name string, k metadata.Kind) (schema.Type, error) {
	switch name {
	case dialect.SQLite:
		return sqliteType(k), nil
	case dialect.Postgres:
		return postgresType(k), nil
	case dialect.MySQL:
		return mysqlType(k), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", name)
}

func sqliteType(k metadata.Kind) schema.Type {
	switch k {
	case metadata.Integer, metadata.BigInt, metadata.SmallInt:
		return &schema.IntegerType{T: "integer"}
	case metadata.Float:
		return &schema.FloatType{T: "real"}
	case metadata.Decimal:
		return &schema.DecimalType{T: "decimal"}
	case metadata.Boolean:
		return &schema.BoolType{T: "bool"}
	case metadata.UUID:
		return &schema.UUIDType{T: "uuid"}
	case metadata.String, metadata.Text:
		return &schema.StringType{T: "text"}
	case metadata.Date, metadata.Time, metadata.DateTime, metadata.DateTimeTZ:
		return &schema.TimeType{T: "datetime"}
	}
	return &schema.JSONType{T: "json"}
}

func postgresType(k metadata.Kind) schema.Type {
	switch k {
	case metadata.Integer:
		return &schema.IntegerType{T: "integer"}
	case metadata.BigInt:
		return &schema.IntegerType{T: "bigint"}
	case metadata.SmallInt:
		return &schema.IntegerType{T: "smallint"}
	case metadata.Float:
		return &schema.FloatType{T: "double precision", Precision: 53}
	case metadata.Decimal:
		return &schema.DecimalType{T: "numeric", Precision: 20, Scale: 6}
	case metadata.Boolean:
		return &schema.BoolType{T: "boolean"}
	case metadata.UUID:
		return &schema.UUIDType{T: "uuid"}
	case metadata.String:
		return &schema.StringType{T: "character varying", Size: 255}
	case metadata.Text:
		return &schema.StringType{T: "text"}
	case metadata.Date:
		return &schema.TimeType{T: "date"}
	case metadata.Time:
		return &schema.TimeType{T: "time without time zone"}
	case metadata.DateTime:
		return &schema.TimeType{T: "timestamp without time zone"}
	case metadata.DateTimeTZ:
		return &schema.TimeType{T: "timestamp with time zone"}
	}
	return &schema.JSONType{T: "jsonb"}
}

func mysqlType(k metadata.Kind) schema.Type {
	switch k {
	case metadata.Integer:
		return &schema.IntegerType{T: "int"}
	case metadata.BigInt:
		return &schema.IntegerType{T: "bigint"}
	case metadata.SmallInt:
		return &schema.IntegerType{T: "smallint"}
	case metadata.Float:
		return &schema.FloatType{T: "double"}
	case metadata.Decimal:
		return &schema.DecimalType{T: "decimal", Precision: 20, Scale: 6}
	case metadata.Boolean:
		return &schema.BoolType{T: "bool"}
	case metadata.UUID:
		return &schema.StringType{T: "char", Size: 36}
	case metadata.String:
		return &schema.StringType{T: "varchar", Size: 255}
	case metadata.Text:
		return &schema.StringType{T: "longtext"}
	case metadata.Date:
		return &schema.TimeType{T: "date"}
	case metadata.Time:
		return &schema.TimeType{T: "time"}
	case metadata.DateTime:
		return &schema.TimeType{T: "datetime"}
	case metadata.DateTimeTZ:
		return &schema.TimeType{T: "timestamp"}
	}
	return &schema.JSONType{T: "json"}
}
