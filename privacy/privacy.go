package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/gqlmap/mutation"
	"github.com/syssam/gqlmap/query"
)

// Decisions returned by rules. Rules may wrap them with Allowf, Denyf and
// Skipf; callers test them with errors.Is.
var (
	// Allow ends the evaluation and lets the operation run.
	Allow = errors.New("privacy: allow")
	// Deny ends the evaluation and rejects the operation.
	Deny = errors.New("privacy: deny")
	// Skip passes the decision to the next rule.
	Skip = errors.New("privacy: skip")
)

// Allowf returns an Allow decision carrying a formatted reason.
func Allowf(format string, a ...any) error { return wrap(Allow, format, a) }

// Denyf returns a Deny decision carrying a formatted reason.
func Denyf(format string, a ...any) error { return wrap(Deny, format, a) }

// Skipf returns a Skip decision carrying a formatted reason.
func Skipf(format string, a ...any) error { return wrap(Skip, format, a) }

func wrap(decision error, format string, a []any) error {
	return fmt.Errorf(format+": %w", append(a, decision)...)
}

type (
	// QueryRule decides a read of an entity. Page reads may be narrowed
	// through their Filter instead of being denied.
	QueryRule interface {
		EvalQuery(context.Context, query.Query) error
	}

	// MutationRule decides a write of an entity instance. It runs inside
	// the transaction of the write, after the instance was persisted.
	MutationRule interface {
		EvalMutation(context.Context, mutation.Mutation) error
	}

	// QueryMutationRule decides reads and writes alike.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}

	// QueryPolicy is an ordered list of query rules.
	QueryPolicy []QueryRule

	// MutationPolicy is an ordered list of mutation rules.
	MutationPolicy []MutationRule
)

// QueryRuleFunc adapts a function to a QueryRule.
type QueryRuleFunc func(context.Context, query.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q query.Query) error { return f(ctx, q) }

// MutationRuleFunc adapts a function to a MutationRule.
type MutationRuleFunc func(context.Context, mutation.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m mutation.Mutation) error {
	return f(ctx, m)
}

// ContextRule decides reads and writes from the context alone. A nil
// result skips.
func ContextRule(eval func(context.Context) error) QueryMutationRule {
	return contextRule(eval)
}

type contextRule func(context.Context) error

func (f contextRule) EvalQuery(ctx context.Context, _ query.Query) error          { return f(ctx) }
func (f contextRule) EvalMutation(ctx context.Context, _ mutation.Mutation) error { return f(ctx) }

// AlwaysAllowRule allows every read and write.
func AlwaysAllowRule() QueryMutationRule {
	return ContextRule(func(context.Context) error { return Allow })
}

// AlwaysDenyRule denies every read and write. It usually ends a policy.
func AlwaysDenyRule() QueryMutationRule {
	return ContextRule(func(context.Context) error { return Deny })
}

// EvalQuery runs the rules in order and returns the first decision that
// is not a skip, or nil.
func (p QueryPolicy) EvalQuery(ctx context.Context, q query.Query) error {
	for _, rule := range p {
		if d := rule.EvalQuery(ctx, q); d != nil && !errors.Is(d, Skip) {
			return d
		}
	}
	return nil
}

// EvalMutation runs the rules in order and returns the first decision
// that is not a skip, or nil.
func (p MutationPolicy) EvalMutation(ctx context.Context, m mutation.Mutation) error {
	for _, rule := range p {
		if d := rule.EvalMutation(ctx, m); d != nil && !errors.Is(d, Skip) {
			return d
		}
	}
	return nil
}

// Evaluator decides the reads and writes of one entity.
type Evaluator interface {
	EvalQuery(context.Context, query.Query) error
	EvalMutation(context.Context, mutation.Mutation) error
}

// Policy is the Evaluator attached to an entity with gqlmap.WithPolicy.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery evaluates the query rules.
func (p Policy) EvalQuery(ctx context.Context, q query.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation evaluates the mutation rules.
func (p Policy) EvalMutation(ctx context.Context, m mutation.Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// DeniedError reports the read or write a policy rejected.
type DeniedError struct {
	// Entity is the short entity name.
	Entity string
	// Op is the query operation or the mutation operation.
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("privacy: %s %s denied: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the decision, so errors.Is(err, Deny) holds.
func (e *DeniedError) Unwrap() error { return e.Err }

// Guard adapts p to the guard of a query manager. Allow and skip let
// the read run; anything else aborts it with a *DeniedError.
func Guard(p Evaluator) query.Guard {
	return func(ctx context.Context, q query.Query) error {
		d := p.EvalQuery(ctx, q)
		if final(d) {
			return nil
		}
		return &DeniedError{Entity: q.Entity().ShortName(), Op: q.Op(), Err: d}
	}
}

// Listener adapts p to a mutation listener. A rejected write fails with
// a *DeniedError and rolls the whole mutation back.
func Listener(p Evaluator) mutation.Listener {
	eval := func(ctx context.Context, m mutation.Mutation) error {
		d := p.EvalMutation(ctx, m)
		if final(d) {
			return nil
		}
		return &DeniedError{Entity: m.Type(), Op: m.Op().String(), Err: d}
	}
	return mutation.ListenerFuncs{Create: eval, Update: eval, Delete: eval}
}

func final(d error) bool {
	return d == nil || errors.Is(d, Allow) || errors.Is(d, Skip)
}
