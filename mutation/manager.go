// Package mutation implements the write side of the generated API:
// create, update and delete, each running in one unit of work.
//
// Inputs are merged onto instances by MergeDeep. Nested objects are looked
// up by their identifier fields and created when absent, so one input can
// upsert a whole subgraph:
//
//	createPost(input: {title: "hello", author: {id: 1}, tags: [{name: "go"}]})
//
// attaches the stored user 1 and a new tag. Any error rolls the whole
// operation back.
package mutation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/syssam/gqlmap/entity"
	"github.com/syssam/gqlmap/gqlerr"
	"github.com/syssam/gqlmap/metadata"
	"github.com/syssam/gqlmap/store"
)

// Manager runs the write operations of one entity.
type Manager struct {
	store    store.Store
	entity   *metadata.Entity
	listener Listener
	log      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithListener sets the listener notified of every write.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listener = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager returns the mutation manager of e.
func NewManager(s store.Store, e *metadata.Entity, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		entity:   e,
		listener: Nop,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores a new instance built from input.
func (m *Manager) Create(ctx context.Context, input map[string]any) (*entity.Entity, error) {
	return m.withTx(ctx, OpCreate, func(uow store.UnitOfWork) (*entity.Entity, error) {
		x := uow.New(m.entity)
		if err := m.MergeDeep(ctx, uow, x, input); err != nil {
			return nil, err
		}
		return x, m.persist(ctx, uow, OpCreate, x)
	})
}

// Update merges input onto the stored instance its identifier fields
// select. It fails with a not found error if there is none.
func (m *Manager) Update(ctx context.Context, input map[string]any) (*entity.Entity, error) {
	ids, err := m.identifier(input)
	if err != nil {
		return nil, gqlerr.NewMutationError(m.entity.ShortName(), OpUpdate.Name(), err)
	}
	return m.withTx(ctx, OpUpdate, func(uow store.UnitOfWork) (*entity.Entity, error) {
		x, err := uow.FindOne(ctx, m.entity, ids)
		if err != nil {
			return nil, err
		}
		if x == nil {
			return nil, gqlerr.NewNotFoundErrorWithIDs(m.entity.ShortName(), ids)
		}
		if err := m.MergeDeep(ctx, uow, x, input); err != nil {
			return nil, err
		}
		return x, m.persist(ctx, uow, OpUpdate, x)
	})
}

// Delete removes the stored instance ids select and returns it. A
// missing instance is not an error: Delete returns nil.
func (m *Manager) Delete(ctx context.Context, ids map[string]any) (*entity.Entity, error) {
	ids, err := m.identifier(ids)
	if err != nil {
		return nil, gqlerr.NewMutationError(m.entity.ShortName(), OpDelete.Name(), err)
	}
	return m.withTx(ctx, OpDelete, func(uow store.UnitOfWork) (*entity.Entity, error) {
		x, err := uow.FindOne(ctx, m.entity, ids)
		if err != nil || x == nil {
			return nil, err
		}
		if err := notify(ctx, m.listener, newEvent(OpDelete, x)); err != nil {
			return nil, err
		}
		if err := uow.Remove(ctx, x); err != nil {
			return nil, err
		}
		m.log.Debug("delete", zap.String("entity", m.entity.ShortName()), zap.Stringer("instance", x))
		return x, nil
	})
}

func (m *Manager) persist(ctx context.Context, uow store.UnitOfWork, op Op, x *entity.Entity) error {
	ev := newEvent(op, x)
	if err := uow.Persist(ctx, x); err != nil {
		return err
	}
	if err := notify(ctx, m.listener, ev); err != nil {
		return err
	}
	m.log.Debug(op.Name(), zap.String("entity", m.entity.ShortName()), zap.Stringer("instance", x), zap.Strings("fields", ev.Fields()))
	return nil
}

// identifier extracts the identifier fields of the entity from input.
func (m *Manager) identifier(input map[string]any) (map[string]any, error) {
	ids := make(map[string]any, len(m.entity.Identifier))
	for _, name := range m.entity.Identifier {
		v, ok := input[name]
		if !ok || v == nil {
			return nil, gqlerr.NewValidationError(name, fmt.Errorf("identifier of %s is required", m.entity.ShortName()))
		}
		ids[name] = v
	}
	return ids, nil
}

// withTx runs fn in a unit of work and commits it. Errors roll back and
// are reported as mutation errors.
func (m *Manager) withTx(ctx context.Context, op Op, fn func(store.UnitOfWork) (*entity.Entity, error)) (*entity.Entity, error) {
	uow, err := m.store.Begin(ctx)
	if err != nil {
		return nil, gqlerr.NewMutationError(m.entity.ShortName(), op.Name(), err)
	}
	x, err := fn(uow)
	if err != nil {
		if rerr := uow.Rollback(); rerr != nil {
			err = gqlerr.NewAggregateError(err, &gqlerr.RollbackError{Err: rerr})
		}
		m.log.Debug("rollback", zap.String("entity", m.entity.ShortName()), zap.String("op", op.Name()), zap.Error(err))
		return nil, gqlerr.NewMutationError(m.entity.ShortName(), op.Name(), err)
	}
	if err := uow.Commit(); err != nil {
		return nil, gqlerr.NewMutationError(m.entity.ShortName(), op.Name(), err)
	}
	return x, nil
}
