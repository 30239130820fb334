package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the narrow relational interface the generation pipeline consumes.
type Store interface {
	Insert(ctx context.Context, table string, row Row) (string, error)
	SelectOne(ctx context.Context, table string, q Query) (Row, bool, error)
	Count(ctx context.Context, table string, filters ...Filter) (int, error)
}

// Row is one record keyed by column name.
type Row map[string]any

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// ErrUnknownColumn is returned for tables or columns outside the schema.
var ErrUnknownColumn = errors.New("unknown table or column")

// DB is a local SQLite-backed Store.
//
// Notes:
// - WAL is enabled so list endpoints can read while a generation run writes.
// - Rows are insert-only; nothing in this package updates or deletes.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*DB)(nil)

func Open(path string) (*DB, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db: db, now: time.Now}, nil
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert writes row into table and returns its id. A missing id is filled
// with a new UUID; a missing created_at_unix_ms is filled with now.
func (s *DB) Insert(ctx context.Context, table string, row Row) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	cols, err := tableColumns(table)
	if err != nil {
		return "", err
	}
	if len(row) == 0 {
		return "", errors.New("empty row")
	}

	values := make(Row, len(row)+2)
	for k, v := range row {
		values[k] = v
	}
	id, _ := values[ColID].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	values[ColID] = id
	if _, ok := cols[ColCreatedAt]; ok {
		if v, ok := values[ColCreatedAt]; !ok || v == nil {
			values[ColCreatedAt] = s.now().UnixMilli()
		}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		if _, ok := cols[k]; !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, k)
		}
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		v, err := encodeValue(values[name])
		if err != nil {
			return "", fmt.Errorf("encode %s.%s: %w", table, name, err)
		}
		args = append(args, v)
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

func (s *DB) SelectOne(ctx context.Context, table string, q Query) (Row, bool, error) {
	q.Limit = 1
	rows, err := s.Select(ctx, table, q)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (s *DB) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(table, cols, q.Filters)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s%s", table, where)
	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			if _, ok := cols[o.Column]; !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, o.Column)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, o.Column+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, limit)
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(names))
		for i, name := range names {
			if raw, ok := vals[i].([]byte); ok {
				r[name] = string(raw)
				continue
			}
			r[name] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialized")
	}
	cols, err := tableColumns(table)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(table, cols, filters)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(1) FROM %s%s`, table, where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func buildWhere(table string, cols map[string]struct{}, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if _, ok := cols[f.Column]; !ok {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, f.Column)
		}
		if f.Value == nil {
			parts = append(parts, f.Column+" IS NULL")
			continue
		}
		v, err := encodeValue(f.Value)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, f.Column+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// encodeValue stores structured values as JSON text.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int, int64, float64, bool:
		return x, nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case json.RawMessage:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}
