package gen

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/gqlmap/graph"
)

// genTypes generates a struct per object and input type and a string type
// per enum.
func (g *Generator) genTypes() *jen.File {
	f := g.newFile()
	for _, t := range g.graph.Types {
		if t.Description != "" {
			f.Comment(t.Description)
		}
		switch t.Kind {
		case KindEnum:
			f.Type().Id(t.Name).String()
			f.Const().DefsFunc(func(group *jen.Group) {
				for _, v := range t.Values {
					group.Id(t.Name + GoName(strings.ToLower(v))).Id(t.Name).Op("=").Lit(v)
				}
			})
		case KindObject, KindInput:
			f.Type().Id(t.Name).StructFunc(func(group *jen.Group) {
				for _, field := range t.Fields {
					tag := field.Name
					if t.Kind == KindInput && !graph.IsNonNull(field.Def) {
						tag += ",omitempty"
					}
					group.Id(field.GoName).Add(g.goType(field.Def)).Tag(map[string]string{"json": tag})
				}
			})
		}
	}
	return f
}

// genOperations generates the document constant and the client method of
// every operation.
func (g *Generator) genOperations() *jen.File {
	f := g.newFile()
	f.Const().DefsFunc(func(group *jen.Group) {
		for _, op := range g.graph.Operations {
			group.Id(op.GoName + "Document").Op("=").Lit(op.Document)
		}
	})
	for _, op := range g.graph.Operations {
		params := []jen.Code{jen.Id("ctx").Qual("context", "Context")}
		vars := jen.Dict{}
		for _, a := range op.Args {
			id := paramName(a.Name)
			params = append(params, jen.Id(id).Add(g.goType(a.Def)))
			vars[jen.Lit(a.Name)] = jen.Id(id)
		}
		result := g.goType(op.Result)
		kind := "query"
		if op.Mutation {
			kind = "mutation"
		}
		comment := op.GoName + " runs the " + op.Name + " " + kind + "."
		if op.Description != "" {
			comment += " " + strings.TrimSuffix(op.Description, ".") + "."
		}
		f.Comment(comment)
		f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id(op.GoName).Params(params...).
			Params(result.Clone(), jen.Error()).
			Block(
				jen.Var().Id("out").Add(result),
				jen.Err().Op(":=").Id("c").Dot("Do").Call(
					jen.Id("ctx"),
					jen.Id(op.GoName+"Document"),
					jen.Map(jen.String()).Any().Values(vars),
					jen.Lit(op.Name),
					jen.Op("&").Id("out"),
				),
				jen.Return(jen.Id("out"), jen.Err()),
			)
	}
	return f
}

// genClient generates the transport shared by every operation method.
func (g *Generator) genClient() *jen.File {
	f := g.newFile()

	f.Comment("Client runs GraphQL operations against an HTTP endpoint.")
	f.Type().Id("Client").Struct(
		jen.Id("Endpoint").String(),
		jen.Id("HTTPClient").Op("*").Qual("net/http", "Client"),
		jen.Comment("Header is sent with every request."),
		jen.Id("Header").Qual("net/http", "Header"),
	)

	f.Comment("New returns a client of the endpoint using http.DefaultClient.")
	f.Func().Id("New").Params(jen.Id("endpoint").String()).Op("*").Id("Client").Block(
		jen.Return(jen.Op("&").Id("Client").Values(jen.Dict{
			jen.Id("Endpoint"):   jen.Id("endpoint"),
			jen.Id("HTTPClient"): jen.Qual("net/http", "DefaultClient"),
			jen.Id("Header"):     jen.Qual("net/http", "Header").Values(),
		})),
	)

	f.Comment("Error is an error reported in a GraphQL response.")
	f.Type().Id("Error").Struct(
		jen.Id("Message").String().Tag(map[string]string{"json": "message"}),
		jen.Id("Path").Index().Any().Tag(map[string]string{"json": "path,omitempty"}),
	)
	f.Comment("Errors are the errors of a GraphQL response.")
	f.Type().Id("Errors").Index().Id("Error")
	f.Func().Params(jen.Id("e").Id("Errors")).Id("Error").Params().String().Block(
		jen.Id("msgs").Op(":=").Make(jen.Index().String(), jen.Lit(0), jen.Len(jen.Id("e"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("err")).Op(":=").Range().Id("e")).Block(
			jen.Id("msgs").Op("=").Append(jen.Id("msgs"), jen.Id("err").Dot("Message")),
		),
		jen.Return(jen.Qual("strings", "Join").Call(jen.Id("msgs"), jen.Lit("; "))),
	)

	f.Comment("Do posts query with its variables and decodes the field of the response data into out.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("Do").Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("query").String(),
		jen.Id("vars").Map(jen.String()).Any(),
		jen.Id("field").String(),
		jen.Id("out").Any(),
	).Error().Block(
		jen.List(jen.Id("body"), jen.Err()).Op(":=").Qual("encoding/json", "Marshal").Call(
			jen.Map(jen.String()).Any().Values(jen.Dict{
				jen.Lit("query"):     jen.Id("query"),
				jen.Lit("variables"): jen.Id("vars"),
			}),
		),
		ifErr(),
		jen.List(jen.Id("req"), jen.Err()).Op(":=").Qual("net/http", "NewRequestWithContext").Call(
			jen.Id("ctx"), jen.Qual("net/http", "MethodPost"), jen.Id("c").Dot("Endpoint"),
			jen.Qual("bytes", "NewReader").Call(jen.Id("body")),
		),
		ifErr(),
		jen.Id("req").Dot("Header").Dot("Set").Call(jen.Lit("Content-Type"), jen.Lit("application/json")),
		jen.For(jen.List(jen.Id("k"), jen.Id("vs")).Op(":=").Range().Id("c").Dot("Header")).Block(
			jen.For(jen.List(jen.Id("_"), jen.Id("v")).Op(":=").Range().Id("vs")).Block(
				jen.Id("req").Dot("Header").Dot("Add").Call(jen.Id("k"), jen.Id("v")),
			),
		),
		jen.List(jen.Id("resp"), jen.Err()).Op(":=").Id("c").Dot("HTTPClient").Dot("Do").Call(jen.Id("req")),
		ifErr(),
		jen.Defer().Id("resp").Dot("Body").Dot("Close").Call(),
		jen.Var().Id("res").Struct(
			jen.Id("Data").Map(jen.String()).Qual("encoding/json", "RawMessage").Tag(map[string]string{"json": "data"}),
			jen.Id("Errors").Id("Errors").Tag(map[string]string{"json": "errors"}),
		),
		jen.If(
			jen.Err().Op(":=").Qual("encoding/json", "NewDecoder").Call(jen.Id("resp").Dot("Body")).Dot("Decode").Call(jen.Op("&").Id("res")),
			jen.Err().Op("!=").Nil(),
		).Block(
			jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit("decode response: %w"), jen.Err())),
		),
		jen.If(jen.Len(jen.Id("res").Dot("Errors")).Op(">").Lit(0)).Block(
			jen.Return(jen.Id("res").Dot("Errors")),
		),
		jen.List(jen.Id("raw"), jen.Id("ok")).Op(":=").Id("res").Dot("Data").Index(jen.Id("field")),
		jen.If(jen.Op("!").Id("ok").Op("||").Id("out").Op("==").Nil()).Block(
			jen.Return(jen.Nil()),
		),
		jen.Return(jen.Qual("encoding/json", "Unmarshal").Call(jen.Id("raw"), jen.Id("out"))),
	)
	return f
}

func ifErr() jen.Code {
	return jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
}

// paramName returns a Go parameter name for a GraphQL argument that does
// not shadow the receiver or the context.
func paramName(s string) string {
	switch s {
	case "c", "ctx", "out", "err":
		return s + "Arg"
	case "type", "func", "range", "map", "var", "select", "default", "case", "go", "chan", "interface", "package", "import", "return", "struct", "switch", "const", "continue", "break", "defer", "else", "fallthrough", "for", "goto", "if":
		return s + "_"
	}
	return s
}
