package catalog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

// sqliteBackend probes sqlite_master and the pragma_table_info table-valued
// function. SQLite keeps no catalog of named constraints, so constraint
// probes search the stored CREATE TABLE text.
type sqliteBackend struct {
	q  Querier
	sb sq.StatementBuilderType
}

func (s *sqliteBackend) tableExists(ctx context.Context, table string) (bool, error) {
	return exists(ctx, s.q, s.sb.Select("COUNT(*)").
		From("sqlite_master").
		Where(sq.Eq{"type": "table", "name": table}))
}

func (s *sqliteBackend) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var (
			col     Column
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.DataType, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		col.Nullable = notNull == 0 && pk == 0
		col.Default, col.HasDefault = def.String, def.Valid
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (s *sqliteBackend) index(ctx context.Context, name string) (Index, bool, error) {
	query, args, err := s.sb.Select("name", "tbl_name", "COALESCE(sql, '')").
		From("sqlite_master").
		Where(sq.Eq{"type": "index", "name": name}).
		ToSql()
	if err != nil {
		return Index{}, false, err
	}

	var idx Index
	err = s.q.QueryRowContext(ctx, query, args...).Scan(&idx.Name, &idx.Table, &idx.Definition)
	if errors.Is(err, sql.ErrNoRows) {
		return Index{}, false, nil
	}
	if err != nil {
		return Index{}, false, err
	}
	idx.Unique = isUniqueDefinition(idx.Definition)
	return idx, true, nil
}

func (s *sqliteBackend) indexes(ctx context.Context, table string) ([]Index, error) {
	// Auto-indexes backing PRIMARY KEY and UNIQUE column constraints have no
	// SQL text; only explicitly created indexes are reported.
	query, args, err := s.sb.Select("name", "tbl_name", "sql").
		From("sqlite_master").
		Where(sq.Eq{"type": "index", "tbl_name": table}).
		Where(sq.NotEq{"sql": nil}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanIndexes(ctx, s.q, query, args)
}

func (s *sqliteBackend) constraintExists(ctx context.Context, table, name string) (bool, error) {
	query, args, err := s.sb.Select("COALESCE(sql, '')").
		From("sqlite_master").
		Where(sq.Eq{"type": "table", "name": table}).
		ToSql()
	if err != nil {
		return false, err
	}

	var ddl string
	err = s.q.QueryRowContext(ctx, query, args...).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	re := regexp.MustCompile(`(?i)\bCONSTRAINT\s+"?` + regexp.QuoteMeta(name) + `"?\s`)
	return re.MatchString(ddl), nil
}
