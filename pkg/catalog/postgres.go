package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// postgresBackend probes information_schema and pg_indexes, restricted to
// current_schema() so tenant schemas on the same server do not leak in.
type postgresBackend struct {
	q  Querier
	sb sq.StatementBuilderType
}

func (p *postgresBackend) tableExists(ctx context.Context, table string) (bool, error) {
	return exists(ctx, p.q, p.sb.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": table, "table_type": "BASE TABLE"}))
}

func (p *postgresBackend) columns(ctx context.Context, table string) ([]Column, error) {
	query, args, err := p.sb.Select(
		"column_name",
		"data_type",
		"is_nullable",
		"column_default",
		"character_maximum_length",
	).
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var (
			col        Column
			isNullable string
			def        sql.NullString
			maxLen     sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &def, &maxLen); err != nil {
			return nil, err
		}
		col.Nullable = isNullable == "YES"
		col.Default, col.HasDefault = def.String, def.Valid
		col.MaxLength = int(maxLen.Int64)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (p *postgresBackend) index(ctx context.Context, name string) (Index, bool, error) {
	query, args, err := p.sb.Select("indexname", "tablename", "indexdef").
		From("pg_indexes").
		Where("schemaname = current_schema()").
		Where(sq.Eq{"indexname": name}).
		ToSql()
	if err != nil {
		return Index{}, false, err
	}

	var idx Index
	err = p.q.QueryRowContext(ctx, query, args...).Scan(&idx.Name, &idx.Table, &idx.Definition)
	if errors.Is(err, sql.ErrNoRows) {
		return Index{}, false, nil
	}
	if err != nil {
		return Index{}, false, err
	}
	idx.Unique = isUniqueDefinition(idx.Definition)
	return idx, true, nil
}

func (p *postgresBackend) indexes(ctx context.Context, table string) ([]Index, error) {
	query, args, err := p.sb.Select("indexname", "tablename", "indexdef").
		From("pg_indexes").
		Where("schemaname = current_schema()").
		Where(sq.Eq{"tablename": table}).
		OrderBy("indexname").
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanIndexes(ctx, p.q, query, args)
}

func (p *postgresBackend) constraintExists(ctx context.Context, table, name string) (bool, error) {
	return exists(ctx, p.q, p.sb.Select("COUNT(*)").
		From("information_schema.table_constraints").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": table, "constraint_name": name}))
}

// exists runs a COUNT(*) query and reports whether it found any row.
func exists(ctx context.Context, q Querier, b sq.SelectBuilder) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("building probe: %w", err)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanIndexes(ctx context.Context, q Querier, query string, args []any) ([]Index, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var idxs []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.Table, &idx.Definition); err != nil {
			return nil, err
		}
		idx.Unique = isUniqueDefinition(idx.Definition)
		idxs = append(idxs, idx)
	}
	return idxs, rows.Err()
}
