package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// PostgresGateway implements Gateway directly against the backend database.
// Result sets are aggregated server side with json_agg so rows decode into
// the same wire types as the REST dialect.
type PostgresGateway struct {
	db *sql.DB
}

// OpenPostgres connects to the backend database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresGateway, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, connectionError("open", "", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connectionError("open", "", err)
	}
	return &PostgresGateway{db: db}, nil
}

// NewPostgresGateway wraps an existing connection pool.
func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// Select implements Gateway.
func (g *PostgresGateway) Select(ctx context.Context, table string, q Query, dest any) error {
	query, args := buildSelect(table, q)

	var raw []byte
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return classifyPG("select", table, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return decodeError("select", table, err)
	}
	return nil
}

// Upsert implements Gateway.
func (g *PostgresGateway) Upsert(ctx context.Context, table string, rows any, opts UpsertOptions) error {
	payload, columns, err := encodeRows(rows)
	if err != nil {
		return requestError("upsert", table, 0, "encode rows", err)
	}
	if len(columns) == 0 {
		return nil
	}

	query := buildUpsert(table, columns, opts)
	if _, err := g.db.ExecContext(ctx, query, string(payload)); err != nil {
		return classifyPG("upsert", table, err)
	}
	return nil
}

// Insert implements Gateway.
func (g *PostgresGateway) Insert(ctx context.Context, table string, row any, dest any) error {
	payload, columns, err := encodeRows([]any{row})
	if err != nil {
		return requestError("insert", table, 0, "encode row", err)
	}

	query := buildInsertReturning(table, columns)
	var raw []byte
	if err := g.db.QueryRowContext(ctx, query, string(payload)).Scan(&raw); err != nil {
		return classifyPG("insert", table, err)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return decodeError("insert", table, err)
	}
	return nil
}

// Update implements Gateway.
func (g *PostgresGateway) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) error {
	if len(patch) == 0 {
		return nil
	}
	query, args := buildUpdate(table, patch, filters)
	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		return classifyPG("update", table, err)
	}
	return nil
}

// Ping implements Gateway.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return connectionError("ping", "", err)
	}
	return nil
}

// Close implements Gateway.
func (g *PostgresGateway) Close() error {
	return g.db.Close()
}

// classifyPG separates server-side rejections from transport failures.
func classifyPG(op, table string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		return requestError(op, table, 0, fmt.Sprintf("%s (%s)", pqErr.Message, pqErr.Code), err)
	}
	return connectionError(op, table, err)
}

// encodeRows marshals rows to a JSON array and returns the sorted union of
// the object keys, which become the inserted column list.
func encodeRows(rows any) ([]byte, []string, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, err
	}
	var objects []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &objects); err != nil {
		return nil, nil, fmt.Errorf("rows must encode to an array of objects: %w", err)
	}
	seen := make(map[string]bool)
	var columns []string
	for _, obj := range objects {
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return payload, columns, nil
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where(filters []Filter) string {
	if len(filters) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		switch f.kind {
		case filterEq:
			clauses = append(clauses, fmt.Sprintf("%s = %s", pq.QuoteIdentifier(f.column), b.bind(f.value)))
		case filterIn:
			clauses = append(clauses, fmt.Sprintf("%s::text = ANY(%s)", pq.QuoteIdentifier(f.column), b.bind(pq.Array(f.values))))
		case filterAnyEq:
			p := b.bind(f.value)
			ors := make([]string, len(f.columns))
			for i, c := range f.columns {
				ors[i] = fmt.Sprintf("%s = %s", pq.QuoteIdentifier(c), p)
			}
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func buildSelect(table string, q Query) (string, []any) {
	var b sqlBuilder
	cols := "*"
	if len(q.Columns) > 0 {
		cols = quoteColumns(q.Columns)
	}
	inner := fmt.Sprintf("SELECT %s FROM %s%s", cols, pq.QuoteIdentifier(table), b.where(q.Filters))
	if q.Limit > 0 {
		inner += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return fmt.Sprintf("SELECT COALESCE(json_agg(t), '[]'::json) FROM (%s) t", inner), b.args
}

func buildUpsert(table string, columns []string, opts UpsertOptions) string {
	cols := quoteColumns(columns)
	query := fmt.Sprintf(
		"INSERT INTO %[1]s (%[2]s) SELECT %[2]s FROM json_populate_recordset(NULL::%[1]s, $1::json)",
		pq.QuoteIdentifier(table), cols,
	)
	if opts.OnConflict == "" {
		return query
	}
	conflict := pq.QuoteIdentifier(opts.OnConflict)
	if opts.IgnoreDuplicates {
		return query + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflict)
	}
	var sets []string
	for _, c := range columns {
		if c == opts.OnConflict {
			continue
		}
		q := pq.QuoteIdentifier(c)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}
	if len(sets) == 0 {
		return query + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflict)
	}
	return query + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", conflict, strings.Join(sets, ", "))
}

func buildInsertReturning(table string, columns []string) string {
	cols := quoteColumns(columns)
	return fmt.Sprintf(
		"WITH ins AS (INSERT INTO %[1]s (%[2]s) SELECT %[2]s FROM json_populate_recordset(NULL::%[1]s, $1::json) RETURNING *) SELECT row_to_json(ins) FROM ins",
		pq.QuoteIdentifier(table), cols,
	)
}

func buildUpdate(table string, patch map[string]any, filters []Filter) (string, []any) {
	var b sqlBuilder
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = %s", pq.QuoteIdentifier(k), b.bind(patch[k]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s%s", pq.QuoteIdentifier(table), strings.Join(sets, ", "), b.where(filters))
	return query, b.args
}
