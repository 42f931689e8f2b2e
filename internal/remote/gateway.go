// Package remote is the typed client for the backend of record.
//
// The backend is table oriented. Two dialects implement Gateway: RESTGateway
// speaks the PostgREST/Supabase HTTP API and PostgresGateway talks SQL to the
// same tables through lib/pq. Both honour the same filter semantics and the
// idempotent upsert contract used to push attendance records.
package remote

import "context"

// Backend tables.
const (
	TableUsers       = "users"
	TableMealConfigs = "user_meal_configs"
	TableDiningHalls = "dining_hall"
	TableChefs       = "chefs"
	TableOverrides   = "meal_location_overrides"
	TableMealLogs    = "meal_logs"
	TableKiosks      = "kiosks"
)

// Query selects rows from one table. Empty Columns selects every column.
// Filters are combined with AND.
type Query struct {
	Columns []string
	Filters []Filter
	Limit   int
}

// UpsertOptions controls conflict handling for Upsert.
type UpsertOptions struct {
	// OnConflict names the unique column the conflict is detected on.
	OnConflict string
	// IgnoreDuplicates keeps the existing row on conflict; otherwise the
	// existing row is updated with the new values.
	IgnoreDuplicates bool
}

// Gateway is the backend table API consumed by the sync engine.
type Gateway interface {
	// Select decodes the matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, table string, q Query, dest any) error

	// Upsert writes rows (a slice of JSON-taggable structs).
	Upsert(ctx context.Context, table string, rows any, opts UpsertOptions) error

	// Insert writes one row and decodes the stored representation into dest.
	Insert(ctx context.Context, table string, row any, dest any) error

	// Update applies patch to every row matching filters.
	Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) error

	// Ping checks that the backend is reachable with the current credentials.
	Ping(ctx context.Context) error

	// Close releases connections held by the gateway.
	Close() error
}
