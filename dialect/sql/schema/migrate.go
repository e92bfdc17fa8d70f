package schema

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/dialect"
	"github.com/syssam/gqlmap/dialect/sql"
)

type (
	// Differ computes the changes turning current into desired.
	Differ interface {
		Diff(current, desired *schema.Schema) ([]schema.Change, error)
	}

	// DiffFunc adapts a function to a Differ.
	DiffFunc func(current, desired *schema.Schema) ([]schema.Change, error)

	// DiffHook wraps the Differ of a migration.
	DiffHook func(Differ) Differ

	// Applier applies a set of changes.
	Applier interface {
		Apply(ctx context.Context, changes []schema.Change) error
	}

	// ApplyFunc adapts a function to an Applier.
	ApplyFunc func(ctx context.Context, changes []schema.Change) error

	// ApplyHook wraps the Applier of a migration.
	ApplyHook func(Applier) Applier
)

// Diff calls f(current, desired).
func (f DiffFunc) Diff(current, desired *schema.Schema) ([]schema.Change, error) {
	return f(current, desired)
}

// Apply calls f(ctx, changes).
func (f ApplyFunc) Apply(ctx context.Context, changes []schema.Change) error {
	return f(ctx, changes)
}

// MigrateOption configures a Migrate.
type MigrateOption func(*Migrate)

// WithSchemaName sets the database schema to migrate. The connection's
// current schema is used by default.
func WithSchemaName(name string) MigrateOption {
	return func(m *Migrate) {
		m.schemaName = name
	}
}

// WithDropColumn allows dropping columns no longer mapped.
func WithDropColumn(b bool) MigrateOption {
	return func(m *Migrate) {
		m.dropColumn = b
	}
}

// WithDropIndex allows dropping indexes no longer mapped.
func WithDropIndex(b bool) MigrateOption {
	return func(m *Migrate) {
		m.dropIndex = b
	}
}

// WithValidateOptions relaxes the validation run before applying changes.
func WithValidateOptions(opts ...ValidateOption) MigrateOption {
	return func(m *Migrate) {
		m.validate = append(m.validate, opts...)
	}
}

// WithDiffHook wraps the differ with the given hooks, outermost first.
func WithDiffHook(hooks ...DiffHook) MigrateOption {
	return func(m *Migrate) {
		m.diffHooks = append(m.diffHooks, hooks...)
	}
}

// WithApplyHook wraps the applier with the given hooks, outermost first.
func WithApplyHook(hooks ...ApplyHook) MigrateOption {
	return func(m *Migrate) {
		m.applyHooks = append(m.applyHooks, hooks...)
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) MigrateOption {
	return func(m *Migrate) {
		m.log = log
	}
}

// Migrate creates and updates the tables of a catalog.
type Migrate struct {
	dialect    string
	atlas      migrate.Driver
	schemaName string
	dropColumn bool
	dropIndex  bool
	validate   []ValidateOption
	diffHooks  []DiffHook
	applyHooks []ApplyHook
	log        *zap.Logger
}

// NewMigrate returns a migration running on drv.
func NewMigrate(drv *sql.Driver, opts ...MigrateOption) (*Migrate, error) {
	m := &Migrate{dialect: drv.Dialect(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	var err error
	switch m.dialect {
	case dialect.SQLite:
		m.atlas, err = sqlite.Open(drv.DB())
	case dialect.Postgres:
		m.atlas, err = postgres.Open(drv.DB())
	case dialect.MySQL:
		m.atlas, err = mysql.Open(drv.DB())
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", m.dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: open %s driver: %w", m.dialect, err)
	}
	return m, nil
}

// Create brings the database in line with tables. Changes that fail
// validation abort the migration before anything is applied.
func (m *Migrate) Create(ctx context.Context, tables ...*Table) error {
	changes, err := m.changes(ctx, tables)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		m.log.Debug("schema up to date")
		return nil
	}
	opts := append([]ValidateOption(nil), m.validate...)
	if m.dropColumn {
		opts = append(opts, AllowDropColumn())
	}
	if m.dropIndex {
		opts = append(opts, AllowDropIndex())
	}
	res := ValidateChanges(changes, opts...)
	for _, w := range res.Warnings {
		m.log.Warn("schema change", zap.Error(w))
	}
	if res.HasErrors() {
		return fmt.Errorf("schema: refusing to migrate:\n%s", res)
	}
	var applier Applier = ApplyFunc(func(ctx context.Context, changes []schema.Change) error {
		return m.atlas.ApplyChanges(ctx, changes)
	})
	for i := len(m.applyHooks) - 1; i >= 0; i-- {
		applier = m.applyHooks[i](applier)
	}
	if err := applier.Apply(ctx, changes); err != nil {
		return fmt.Errorf("schema: apply changes: %w", err)
	}
	m.log.Info("schema migrated", zap.Int("changes", len(changes)))
	return nil
}

// Plan returns the statements Create would run, without running them.
func (m *Migrate) Plan(ctx context.Context, tables ...*Table) (*migrate.Plan, error) {
	changes, err := m.changes(ctx, tables)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return &migrate.Plan{Name: "changes"}, nil
	}
	plan, err := m.atlas.PlanChanges(ctx, "changes", changes)
	if err != nil {
		return nil, fmt.Errorf("schema: plan changes: %w", err)
	}
	return plan, nil
}

// changes inspects the mapped tables of the database and diffs them
// against tables. Tables outside the mapping are never touched.
func (m *Migrate) changes(ctx context.Context, tables []*Table) ([]schema.Change, error) {
	if res := ValidateTables(tables); res.HasErrors() {
		return nil, fmt.Errorf("schema: invalid tables:\n%s", res)
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	current, err := m.atlas.InspectSchema(ctx, m.schemaName, &schema.InspectOptions{Tables: names})
	if err != nil {
		return nil, fmt.Errorf("schema: inspect: %w", err)
	}
	ts, err := atlasTables(m.dialect, tables)
	if err != nil {
		return nil, err
	}
	desired := schema.New(current.Name).AddTables(ts...)
	var differ Differ = DiffFunc(func(current, desired *schema.Schema) ([]schema.Change, error) {
		return m.atlas.SchemaDiff(current, desired)
	})
	for i := len(m.diffHooks) - 1; i >= 0; i-- {
		differ = m.diffHooks[i](differ)
	}
	changes, err := differ.Diff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("schema: diff: %w", err)
	}
	return m.filter(changes), nil
}

// filter drops the removals that were not allowed.
func (m *Migrate) filter(changes []schema.Change) []schema.Change {
	out := changes[:0]
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropTable:
			continue
		case *schema.ModifyTable:
			kept := c.Changes[:0]
			for _, tc := range c.Changes {
				switch tc := tc.(type) {
				case *schema.ModifyColumn:
					// SQLite reports INTEGER PRIMARY KEY columns as nullable.
					if m.dialect == dialect.SQLite && primaryKey(c.T, tc.To.Name) {
						tc.Change &^= schema.ChangeNull
						if tc.Change == schema.NoChange {
							continue
						}
					}
				case *schema.DropColumn:
					if !m.dropColumn {
						continue
					}
				case *schema.DropIndex, *schema.DropForeignKey:
					if !m.dropIndex {
						continue
					}
				}
				kept = append(kept, tc)
			}
			if len(kept) == 0 {
				continue
			}
			c.Changes = kept
		}
		out = append(out, c)
	}
	return out
}

func primaryKey(t *schema.Table, column string) bool {
	if t == nil || t.PrimaryKey == nil {
		return false
	}
	for _, p := range t.PrimaryKey.Parts {
		if p.C != nil && p.C.Name == column {
			return true
		}
	}
	return false
}
