// gqlmapgen generates a typed Go client for the GraphQL schema derived from
// an entity mapping.
//
//	gqlmapgen -mapping mapping.yaml -out ./client -pkg client
//
// The database is never queried; the schema depends on the mapping only.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/syssam/gqlmap"
	"github.com/syssam/gqlmap/compiler/gen"
	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/internal/logger"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/naming"
	"github.com/syssam/gqlmap/store/sqlstore"
)

type options struct {
	mapping string
	out     string
	pkg     string
	depth   int
	simple  bool
	verbose bool
}

func main() {
	var opts options
	flag.StringVar(&opts.mapping, "mapping", "mapping.yaml", "entity mapping file")
	flag.StringVar(&opts.out, "out", "client", "output directory")
	flag.StringVar(&opts.pkg, "pkg", "", "package name (default: base name of -out)")
	flag.IntVar(&opts.depth, "depth", 1, "object levels selected below each operation result")
	flag.BoolVar(&opts.simple, "simple-names", false, "use fully qualified entity names for types")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()
	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "gqlmapgen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(level, "development")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	catalog, err := metadata.LoadFile(opts.mapping)
	if err != nil {
		return err
	}
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	if err != nil {
		return err
	}
	defer drv.Close()

	names := naming.Short
	if opts.simple {
		names = naming.Simple
	}
	b := gqlmap.New(graph.NewRegistry(), sqlstore.New(drv, catalog),
		gqlmap.WithNameGenerator(names),
		gqlmap.WithLogger(log.Named("builder")),
	)
	if _, err := b.Build(ctx); err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	g, err := gen.Load(b.Registry(), gen.WithDepth(opts.depth))
	if err != nil {
		return err
	}
	genOpts := []gen.Option{gen.WithLogger(log.Named("gen"))}
	if opts.pkg != "" {
		genOpts = append(genOpts, gen.WithPackage(opts.pkg))
	}
	if err := gen.New(g, opts.out, genOpts...).Generate(ctx); err != nil {
		return err
	}
	log.Info("done", zap.String("mapping", opts.mapping), zap.String("out", opts.out))
	return nil
}
