package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap"
	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/dialect/sql/schema"
	"github.com/syssam/gqlmap/graph"
	"github.com/syssam/gqlmap/internal/config"
	"github.com/syssam/gqlmap/internal/httpapi"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/naming"
	"github.com/syssam/gqlmap/store/sqlstore"
)

// debounce collapses the burst of events editors emit on save.
const debounce = 250 * time.Millisecond

type app struct {
	cfg   *config.Config
	drv   *sql.Driver
	stats *sql.StatsDriver
	srv   *httpapi.Server
	log   *zap.Logger
	mu    sync.Mutex
}

// reload loads the mapping, migrates if configured, and swaps the served
// schema. A failing reload leaves the previous schema in place.
func (a *app) reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	catalog, err := metadata.LoadFile(a.cfg.Mapping)
	if err != nil {
		return err
	}
	if a.cfg.Migrate {
		if err := a.migrate(ctx, catalog); err != nil {
			return err
		}
	}
	st := sqlstore.New(a.stats, catalog, sqlstore.WithLogger(a.log.Named("store")))
	b := gqlmap.New(graph.NewRegistry(), st,
		gqlmap.WithNameGenerator(naming.Short),
		gqlmap.WithPageLimits(a.cfg.MaxLimit),
		gqlmap.WithLogger(a.log.Named("builder")),
	)
	s, err := b.Build(ctx)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl, err := b.Registry().SDL()
	if err != nil {
		return fmt.Errorf("print schema: %w", err)
	}
	a.srv.SetSchema(s, sdl)
	a.log.Info("schema loaded", zap.String("mapping", a.cfg.Mapping), zap.Int("entities", catalog.Len()))
	return nil
}

func (a *app) migrate(ctx context.Context, catalog *metadata.Catalog) error {
	tables, err := schema.FromCatalog(catalog)
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(a.drv, schema.WithLogger(a.log.Named("migrate")))
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}

// watch reloads the schema whenever the mapping file changes. The
// directory is watched so that editors replacing the file are seen.
func (a *app) watch(ctx context.Context) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path, err := filepath.Abs(a.cfg.Mapping)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					if err := a.reload(ctx); err != nil {
						a.log.Error("reload mapping", zap.Error(err))
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				a.log.Warn("watch mapping", zap.Error(err))
			}
		}
	}()
	a.log.Info("watching mapping", zap.String("path", path))
	return w, nil
}
