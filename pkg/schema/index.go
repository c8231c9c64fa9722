package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EnsureIndex creates the index when no index of that name exists.
// Partial and expression indexes are skipped on engines that cannot
// build them.
func EnsureIndex(idx IndexSpec) Transition {
	object := "index " + idx.Name
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := env.Catalog().IndexExists(ctx, idx.Name)
			if err != nil {
				return Absent, err
			}
			if ok {
				return Target, nil
			}
			return Absent, nil
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			return createIndex(ctx, env, object, idx)
		},
	}
}

func createIndex(ctx context.Context, env Env, object string, idx IndexSpec) error {
	if err := idx.Supported(env.Capabilities()); err != nil {
		return skip(env, object, err)
	}
	return env.Exec(ctx, idx.CreateSQL())
}

// ReplaceIndex moves a uniqueness (or lookup) scope to idx. Every index it
// supersedes is named explicitly and dropped by name, each drop guarded by
// an existence probe, before idx is created.
//
//	any superseded index present -> Partial: drop them, create idx
//	idx present                  -> Target
//	otherwise                    -> Absent:  create idx
func ReplaceIndex(idx IndexSpec, superseded ...string) Transition {
	object := "index " + idx.Name
	return Transition{
		Object: object,
		Assess: func(ctx context.Context, env Env) (State, error) {
			for _, name := range superseded {
				ok, err := env.Catalog().IndexExists(ctx, name)
				if err != nil {
					return Absent, err
				}
				if ok {
					return Partial, nil
				}
			}
			ok, err := env.Catalog().IndexExists(ctx, idx.Name)
			if err != nil {
				return Absent, err
			}
			if ok {
				return Target, nil
			}
			return Absent, nil
		},
		OnAbsent: func(ctx context.Context, env Env) error {
			return createIndex(ctx, env, object, idx)
		},
		OnPartial: func(ctx context.Context, env Env) error {
			for _, name := range superseded {
				if err := dropIndex(ctx, env, name); err != nil {
					return err
				}
			}
			ok, err := env.Catalog().IndexExists(ctx, idx.Name)
			if err != nil || ok {
				return err
			}
			return createIndex(ctx, env, object, idx)
		},
	}
}

func dropIndex(ctx context.Context, env Env, name string) error {
	ok, err := env.Catalog().IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	env.Logger().Info("dropping superseded index", zap.String("index", name))
	return env.ExecOptional(ctx, DropIndexSQL(name))
}

// DropIndexIfExists drops an index that may or may not exist. The drop is
// tolerant: a concurrent removal between probe and drop is not an error.
func DropIndexIfExists(name string) Transition {
	return Transition{
		Object: fmt.Sprintf("index %s (drop)", name),
		Assess: func(ctx context.Context, env Env) (State, error) {
			ok, err := env.Catalog().IndexExists(ctx, name)
			if err != nil || !ok {
				return Target, err
			}
			return Partial, nil
		},
		OnPartial: func(ctx context.Context, env Env) error {
			return env.ExecOptional(ctx, DropIndexSQL(name))
		},
	}
}

// SupersededBy reports t as Target once any of the named indexes exists.
// An index scope that a later unit moves again must not be rebuilt when
// the history is replayed: rebuilding a wider unique index can fail on
// rows the narrower scope allows.
func SupersededBy(t Transition, indexes ...string) Transition {
	assess := t.Assess
	t.Assess = func(ctx context.Context, env Env) (State, error) {
		for _, name := range indexes {
			ok, err := env.Catalog().IndexExists(ctx, name)
			if err != nil {
				return Absent, err
			}
			if ok {
				return Target, nil
			}
		}
		return assess(ctx, env)
	}
	return t
}
