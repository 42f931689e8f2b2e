package remote

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect(TableMealConfigs, Query{
		Columns: []string{"user_id", "lunch_location"},
		Filters: []Filter{
			AnyEq(int64(3), "lunch_location", "dinner_location"),
			In("user_id", []string{"u1", "u2"}),
		},
		Limit: 10,
	})

	assert.Equal(t,
		`SELECT COALESCE(json_agg(t), '[]'::json) FROM (SELECT "user_id", "lunch_location" FROM "user_meal_configs"`+
			` WHERE ("lunch_location" = $1 OR "dinner_location" = $1) AND "user_id"::text = ANY($2) LIMIT 10) t`,
		query)
	require.Len(t, args, 2)
	assert.Equal(t, int64(3), args[0])
	assert.Equal(t, pq.Array([]string{"u1", "u2"}), args[1])
}

func TestBuildSelect_NoFilters(t *testing.T) {
	query, args := buildSelect(TableDiningHalls, Query{})
	assert.Equal(t, `SELECT COALESCE(json_agg(t), '[]'::json) FROM (SELECT * FROM "dining_hall") t`, query)
	assert.Empty(t, args)
}

func TestBuildUpsert(t *testing.T) {
	cols := []string{"sync_key", "user_id"}

	ignore := buildUpsert(TableMealLogs, cols, UpsertOptions{OnConflict: "sync_key", IgnoreDuplicates: true})
	assert.Equal(t,
		`INSERT INTO "meal_logs" ("sync_key", "user_id") SELECT "sync_key", "user_id" FROM json_populate_recordset(NULL::"meal_logs", $1::json) ON CONFLICT ("sync_key") DO NOTHING`,
		ignore)

	merge := buildUpsert(TableMealLogs, cols, UpsertOptions{OnConflict: "sync_key"})
	assert.Contains(t, merge, `ON CONFLICT ("sync_key") DO UPDATE SET "user_id" = EXCLUDED."user_id"`)
}

func TestBuildUpdate(t *testing.T) {
	query, args := buildUpdate(TableKiosks, map[string]any{"last_heartbeat": "t", "is_active": true}, []Filter{Eq("device_uuid", "d")})
	assert.Equal(t, `UPDATE "kiosks" SET "is_active" = $1, "last_heartbeat" = $2 WHERE "device_uuid" = $3`, query)
	assert.Equal(t, []any{true, "t", "d"}, args)
}

func TestEncodeRows_ColumnUnion(t *testing.T) {
	payload, cols, err := encodeRows([]KioskRow{{DeviceUUID: "d", DeviceName: "front"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"device_name", "device_uuid", "dining_hall_id", "is_active", "last_heartbeat"}, cols)
	assert.Contains(t, string(payload), `"device_uuid":"d"`)

	_, _, err = encodeRows(map[string]string{"a": "b"})
	assert.Error(t, err)
}
