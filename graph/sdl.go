package graph

import (
	"bytes"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/syssam/gqlmap/gqlerr"
)

// specified scalars are declared by every GraphQL schema and must not be
// redeclared in SDL.
var specifiedScalars = map[string]bool{
	"Int": true, "Float": true, "String": true, "Boolean": true, "ID": true,
}

// SDL renders the registry as a GraphQL schema document. The document is
// validated by loading it back before it is returned.
func (r *Registry) SDL() (string, error) {
	doc := r.document()
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	sdl := buf.String()
	if _, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl}); err != nil {
		return "", gqlerr.NewConfigError("Schema", "invalid SDL", err)
	}
	return sdl, nil
}

func (r *Registry) document() *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	seen := make(map[string]bool)
	var visit func(Definition)
	visit = func(d Definition) {
		if d == nil {
			return
		}
		d = Unwrap(d)
		if def, ok := r.Type(d.Name()); ok {
			d = def
		}
		if seen[d.Name()] {
			return
		}
		seen[d.Name()] = true
		switch v := d.(type) {
		case *Scalar:
			if !specifiedScalars[v.Name()] {
				doc.Definitions = append(doc.Definitions, &ast.Definition{
					Kind:        ast.Scalar,
					Name:        v.Name(),
					Description: v.Type().Description(),
				})
			}
		case *Enum:
			def := &ast.Definition{Kind: ast.Enum, Name: v.name, Description: v.description}
			for _, ev := range v.values {
				def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{Name: ev.Name, Description: ev.Description})
			}
			doc.Definitions = append(doc.Definitions, def)
		case *Object:
			doc.Definitions = append(doc.Definitions, &ast.Definition{
				Kind:        ast.Object,
				Name:        v.name,
				Description: v.description,
				Fields:      fieldList(v.set.fields),
			})
			for _, f := range v.set.fields {
				visit(f.Type)
				for _, a := range f.Args {
					visit(a.Type)
				}
			}
		case *Input:
			doc.Definitions = append(doc.Definitions, &ast.Definition{
				Kind:        ast.InputObject,
				Name:        v.name,
				Description: v.description,
				Fields:      fieldList(v.set.fields),
			})
			for _, f := range v.set.fields {
				visit(f.Type)
			}
		}
	}
	for _, def := range r.defs {
		visit(def)
	}
	roots := []struct {
		name string
		ops  []*Operation
	}{{"Query", r.queries.ops}, {"Mutation", r.mutations.ops}}
	for _, root := range roots {
		if len(root.ops) == 0 && root.name == "Mutation" {
			continue
		}
		def := &ast.Definition{Kind: ast.Object, Name: root.name}
		for _, op := range root.ops {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        op.Name,
				Description: op.Description,
				Type:        astType(op.Type),
				Arguments:   argumentList(op.Args),
			})
			visit(op.Type)
			for _, a := range op.Args {
				visit(a.Type)
			}
		}
		if len(def.Fields) == 0 {
			def.Fields = ast.FieldList{{Name: "_schema", Type: ast.NamedType("String", nil)}}
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	return doc
}

func fieldList(fields []*Field) ast.FieldList {
	list := make(ast.FieldList, 0, len(fields))
	for _, f := range fields {
		list = append(list, &ast.FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Type:        astType(f.Type),
			Arguments:   argumentList(f.Args),
		})
	}
	return list
}

func argumentList(args []*Argument) ast.ArgumentDefinitionList {
	if len(args) == 0 {
		return nil
	}
	list := make(ast.ArgumentDefinitionList, 0, len(args))
	for _, a := range args {
		list = append(list, &ast.ArgumentDefinition{
			Name:        a.Name,
			Description: a.Description,
			Type:        astType(a.Type),
		})
	}
	return list
}

func astType(d Definition) *ast.Type {
	switch v := d.(type) {
	case nil:
		return ast.NamedType("String", nil)
	case *NonNull:
		t := astType(v.of)
		t.NonNull = true
		return t
	case *List:
		return ast.ListType(astType(v.of), nil)
	default:
		return ast.NamedType(d.Name(), nil)
	}
}
