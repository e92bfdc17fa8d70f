package gen

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/gqlmap/graph"
)

// Header is the first line of every generated Go file.
const Header = "Code generated by gqlmap. DO NOT EDIT."

// Generated file names.
const (
	TypesFile      = "types.go"
	OperationsFile = "operations.go"
	ClientFile     = "client.go"
	SchemaFile     = "schema.graphql"
)

// Generator writes the client package of a Graph.
type Generator struct {
	graph   *Graph
	outDir  string
	pkg     string
	workers int
	log     *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithPackage sets the package name of the generated files. It defaults to
// the base name of the output directory.
func WithPackage(pkg string) Option {
	return func(g *Generator) {
		g.pkg = pkg
	}
}

// WithWorkers bounds the number of files written concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// New returns a generator writing into outDir.
func New(g *Graph, outDir string, opts ...Option) *Generator {
	gen := &Generator{
		graph:   g,
		outDir:  outDir,
		pkg:     filepath.Base(outDir),
		workers: runtime.GOMAXPROCS(0),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// Generate writes the Go files and the SDL file.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return err
	}
	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(g.workers)
	for name, build := range map[string]func() *jen.File{
		TypesFile:      g.genTypes,
		OperationsFile: g.genOperations,
		ClientFile:     g.genClient,
	} {
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return g.writeFile(build(), name)
		})
	}
	errg.Go(func() error {
		return os.WriteFile(filepath.Join(g.outDir, SchemaFile), []byte(g.graph.SDL), 0o644)
	})
	if err := errg.Wait(); err != nil {
		return err
	}
	g.log.Info("client generated",
		zap.String("dir", g.outDir),
		zap.Int("types", len(g.graph.Types)),
		zap.Int("operations", len(g.graph.Operations)))
	return nil
}

// writeFile renders f into the output directory.
func (g *Generator) writeFile(f *jen.File, name string) error {
	out, err := os.Create(filepath.Join(g.outDir, name))
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Render(out)
}

func (g *Generator) newFile() *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment(Header)
	return f
}

// goType returns the Go type holding values of d. Nullable named types
// are pointers, lists are slices.
func (g *Generator) goType(d graph.Definition) *jen.Statement {
	switch v := d.(type) {
	case *graph.NonNull:
		if l, ok := v.OfType().(*graph.List); ok {
			return jen.Index().Add(g.goType(l.OfType()))
		}
		return g.namedType(v.OfType())
	case *graph.List:
		return jen.Index().Add(g.goType(v.OfType()))
	default:
		return jen.Op("*").Add(g.namedType(d))
	}
}

func (g *Generator) namedType(d graph.Definition) *jen.Statement {
	name := d.Name()
	if ref, ok := d.(graph.Ref); ok {
		if def, ok := g.graph.reg.Type(ref.Name()); ok {
			d = def
		}
	}
	switch name {
	case "Int":
		return jen.Int()
	case "Float":
		return jen.Float64()
	case "Boolean":
		return jen.Bool()
	case "String", "ID":
		return jen.String()
	case graph.DateTimeName:
		return jen.Qual("time", "Time")
	}
	if _, ok := d.(*graph.Scalar); ok {
		return jen.Qual("encoding/json", "RawMessage")
	}
	return jen.Id(name)
}
