// Package schema models schema objects as small state machines.
//
// Every object a migration touches (a table, a column, an index, a
// constraint, a batch of rows) is in one of three states: Absent, Partial
// or Target. A Transition pairs a read-only Assess probe with one action
// per non-target state. Target is always a no-op, so applying a transition
// twice leaves the schema exactly as applying it once.
//
// Transitions are evaluated in order by Apply:
//
//	err := schema.Apply(ctx, env,
//		schema.RescueTable(productOrders),
//		schema.EnsureColumn("product_orders", tenantID),
//		schema.EnsureNotNull("product_orders", "tenantId"),
//	)
//
// Assess runs the probes only and is used for read-only plans.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/schemaward/pkg/catalog"
)

// Env is what a transition needs from a migration session.
type Env interface {
	catalog.Querier

	// Exec runs a statement whose failure must abort the unit.
	Exec(ctx context.Context, query string, args ...any) error
	// ExecOptional runs a statement that is a no-op when the object it
	// references does not exist. Missing-object errors are tolerated
	// without poisoning the surrounding transaction.
	ExecOptional(ctx context.Context, query string) error

	Catalog() catalog.Prober
	Capabilities() catalog.Capabilities
	Logger() *zap.Logger
}

// State is the shape a schema object is currently in.
type State int

const (
	// Absent means the object does not exist at all.
	Absent State = iota
	// Partial means the object exists but not in its intended shape.
	Partial
	// Target means the object already has its intended shape.
	Target
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Partial:
		return "partial"
	case Target:
		return "target"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Probe assesses the current state of an object. Probes must not mutate.
type Probe func(ctx context.Context, env Env) (State, error)

// Action moves an object towards its target state.
type Action func(ctx context.Context, env Env) error

// Transition is one row of a unit's decision table. A nil action is a no-op
// for that state.
type Transition struct {
	// Object names the schema object, e.g. "column product_orders.tenantId".
	Object    string
	Assess    Probe
	OnAbsent  Action
	OnPartial Action
}

// Action returns the action for state s, nil when there is nothing to do.
func (t Transition) Action(s State) Action {
	switch s {
	case Absent:
		return t.OnAbsent
	case Partial:
		return t.OnPartial
	default:
		return nil
	}
}

// Assessment is the state an object was found in.
type Assessment struct {
	Object string
	State  State
	// Noop is true when the transition has no action for State.
	Noop bool
}

// Apply evaluates each transition in order: assess, then run the action for
// the assessed state. The first error aborts the remaining transitions.
func Apply(ctx context.Context, env Env, transitions ...Transition) error {
	log := env.Logger()
	for _, t := range transitions {
		state, err := t.Assess(ctx, env)
		if err != nil {
			return fmt.Errorf("assessing %s: %w", t.Object, err)
		}

		action := t.Action(state)
		if action == nil {
			log.Debug("no change", zap.String("object", t.Object), zap.Stringer("state", state))
			continue
		}

		log.Debug("applying transition", zap.String("object", t.Object), zap.Stringer("state", state))
		if err := action(ctx, env); err != nil {
			return fmt.Errorf("%s (%s): %w", t.Object, state, err)
		}
	}
	return nil
}

// Assess evaluates the probes of every transition without applying any
// action. Each probe sees the current schema, not the effect of the
// transitions before it.
func Assess(ctx context.Context, env Env, transitions ...Transition) ([]Assessment, error) {
	out := make([]Assessment, 0, len(transitions))
	for _, t := range transitions {
		state, err := t.Assess(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("assessing %s: %w", t.Object, err)
		}
		out = append(out, Assessment{Object: t.Object, State: state, Noop: t.Action(state) == nil})
	}
	return out, nil
}

// skip logs that an operation was left out because the engine cannot
// express it. It always returns nil.
func skip(env Env, object string, reason error) error {
	env.Logger().Warn("skipping unsupported operation",
		zap.String("object", object),
		zap.String("engine", env.Capabilities().String()),
		zap.Error(reason))
	return nil
}

// count runs a COUNT(*) query through env.
func count(ctx context.Context, env Env, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := env.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n.Int64, nil
}
