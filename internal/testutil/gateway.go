package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/mealkiosk/internal/remote"
)

// Call records one gateway operation.
type Call struct {
	Op    string
	Table string
	Rows  int
}

type failure struct {
	after int
	err   error
}

// MemoryGateway is an in-memory remote.Gateway with failure injection.
//
// Rows are stored as decoded JSON objects, so filters and conflict keys see
// exactly what a real backend would receive. Close only counts calls; the data
// survives so one MemoryGateway can serve every gateway a test asks for.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryGateway struct {
	mu       sync.Mutex
	tables   map[string][]map[string]any
	nextID   map[string]int64
	failures map[string]*failure
	calls    []Call
	closed   int

	pingErr error

	// Unconfigured makes Gateway report remote.ErrNotConfigured.
	Unconfigured bool
}

// NewMemoryGateway creates an empty backend.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tables:   make(map[string][]map[string]any),
		nextID:   make(map[string]int64),
		failures: make(map[string]*failure),
	}
}

// Gateway returns m, so MemoryGateway can stand in for a remote.Factory.
func (m *MemoryGateway) Gateway(context.Context) (remote.Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unconfigured {
		return nil, remote.ErrNotConfigured
	}
	return m, nil
}

// Seed appends rows (a slice of JSON-taggable values) to table.
func (m *MemoryGateway) Seed(table string, rows any) {
	decoded, err := toMaps(rows)
	if err != nil {
		panic(fmt.Sprintf("testutil: seed %s: %v", table, err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range decoded {
		m.assignID(table, r)
		m.tables[table] = append(m.tables[table], r)
	}
}

// Rows decodes every row of table into dest, a pointer to a slice.
func (m *MemoryGateway) Rows(table string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fromMaps(m.tables[table], dest)
}

// Count returns the number of rows in table.
func (m *MemoryGateway) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// FailOn makes op on table fail with err after `after` further successful
// calls. op is one of select, upsert, insert, update; an empty table matches
// every table.
func (m *MemoryGateway) FailOn(op, table string, after int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+":"+table] = &failure{after: after, err: err}
}

// ClearFailures removes every injected failure.
func (m *MemoryGateway) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]*failure)
}

// Calls returns the recorded operations in order.
func (m *MemoryGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo counts recorded operations matching op and table.
func (m *MemoryGateway) CallsTo(op, table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op && c.Table == table {
			n++
		}
	}
	return n
}

// Closed returns how many times Close was called.
func (m *MemoryGateway) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Select implements remote.Gateway.
func (m *MemoryGateway) Select(_ context.Context, table string, q remote.Query, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("select", table, 0); err != nil {
		return err
	}

	out := make([]map[string]any, 0)
	for _, r := range m.tables[table] {
		if !remote.MatchAll(q.Filters, r) {
			continue
		}
		out = append(out, project(r, q.Columns))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return fromMaps(out, dest)
}

// Upsert implements remote.Gateway.
func (m *MemoryGateway) Upsert(_ context.Context, table string, rows any, opts remote.UpsertOptions) error {
	decoded, err := toMaps(rows)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("upsert", table, len(decoded)); err != nil {
		return err
	}

	for _, r := range decoded {
		idx := -1
		if opts.OnConflict != "" {
			idx = m.find(table, opts.OnConflict, r[opts.OnConflict])
		}
		switch {
		case idx < 0:
			m.assignID(table, r)
			m.tables[table] = append(m.tables[table], r)
		case opts.IgnoreDuplicates:
		default:
			for k, v := range r {
				m.tables[table][idx][k] = v
			}
		}
	}
	return nil
}

// Insert implements remote.Gateway.
func (m *MemoryGateway) Insert(_ context.Context, table string, row any, dest any) error {
	decoded, err := toMaps([]any{row})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insert", table, 1); err != nil {
		return err
	}

	r := decoded[0]
	m.assignID(table, r)
	m.tables[table] = append(m.tables[table], r)
	if dest == nil {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// Update implements remote.Gateway.
func (m *MemoryGateway) Update(_ context.Context, table string, patch map[string]any, filters ...remote.Filter) error {
	decoded, err := toMaps([]any{patch})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update", table, 0); err != nil {
		return err
	}
	for _, r := range m.tables[table] {
		if !remote.MatchAll(filters, r) {
			continue
		}
		for k, v := range decoded[0] {
			r[k] = v
		}
	}
	return nil
}

// Ping implements remote.Gateway.
func (m *MemoryGateway) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

// SetPingErr makes Ping fail with err, or succeed when err is nil.
func (m *MemoryGateway) SetPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Close implements remote.Gateway.
func (m *MemoryGateway) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// record logs the call and applies injected failures. Caller holds mu.
func (m *MemoryGateway) record(op, table string, rows int) error {
	for _, key := range []string{op + ":" + table, op + ":"} {
		f, ok := m.failures[key]
		if !ok {
			continue
		}
		if f.after > 0 {
			f.after--
			continue
		}
		return f.err
	}
	m.calls = append(m.calls, Call{Op: op, Table: table, Rows: rows})
	return nil
}

func (m *MemoryGateway) find(table, column string, value any) int {
	if value == nil {
		return -1
	}
	want := fmt.Sprint(value)
	for i, r := range m.tables[table] {
		if v, ok := r[column]; ok && v != nil && fmt.Sprint(v) == want {
			return i
		}
	}
	return -1
}

func (m *MemoryGateway) assignID(table string, r map[string]any) {
	if v, ok := r["id"]; ok && v != nil && fmt.Sprint(v) != "0" {
		if n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64); err == nil && n > m.nextID[table] {
			m.nextID[table] = n
		}
		return
	}
	m.nextID[table]++
	r["id"] = json.Number(strconv.FormatInt(m.nextID[table], 10))
}

func project(r map[string]any, columns []string) map[string]any {
	out := make(map[string]any, len(r))
	if len(columns) == 0 {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func toMaps(rows any) ([]map[string]any, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out []map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("rows must encode as a JSON array of objects: %w", err)
	}
	return out, nil
}

func fromMaps(rows []map[string]any, dest any) error {
	if rows == nil {
		rows = []map[string]any{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}
