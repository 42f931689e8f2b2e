package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
)

func TestCreateMealLog_DefaultsToPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chef := int64(11)
	device := "dev-1"
	log := createTestMealLog("u1", "2026-10-19")
	log.ChefID = &chef
	log.DeviceUUID = &device

	stored, inserted, err := s.CreateMealLog(ctx, log)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, stored.ID)
	assert.Equal(t, model.SyncPending, stored.SyncStatus)
	assert.False(t, stored.IsExtraServing)
	assert.False(t, stored.IsManualOverride)
	assert.Equal(t, &chef, stored.ChefID)
	assert.Equal(t, &device, stored.DeviceUUID)
	assert.True(t, log.ScannedAt.Equal(stored.ScannedAt))
}

func TestCreateMealLog_DuplicateKeyIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.CreateMealLog(ctx, createTestMealLog("u1", "2026-10-19"))
	require.NoError(t, err)
	require.True(t, inserted)

	again := createTestMealLog("u1", "2026-10-19")
	again.ScannedAt = again.ScannedAt.Add(time.Minute)
	stored, inserted, err := s.CreateMealLog(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, stored.ID)
	assert.True(t, first.ScannedAt.Equal(stored.ScannedAt))

	logs, err := s.MealLogs(ctx, MealLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestCreateMealLog_ExtraServingsUnbounded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	base := createTestMealLog("u1", "2026-10-19")
	_, _, err := s.CreateMealLog(ctx, base)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		extra := base
		extra.IsExtraServing = true
		extra.ScannedAt = base.ScannedAt.Add(time.Duration(i+1) * time.Second)
		extra.SyncKey = model.ExtraSyncKey(base.UserID, base.MealType, base.Date, extra.ScannedAt)
		_, inserted, err := s.CreateMealLog(ctx, extra)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	counts, err := s.ServedCounts(ctx, "2026-10-19", model.SlotLunch, 3)
	require.NoError(t, err)
	assert.Equal(t, ServedCounts{Total: 4, Extra: 3}, counts)
}

func TestCreateMealLog_EmptyKeyRejected(t *testing.T) {
	s := createTestStore(t)

	log := createTestMealLog("u1", "2026-10-19")
	log.SyncKey = ""
	_, _, err := s.CreateMealLog(context.Background(), log)
	assert.Error(t, err)
}

func TestFindMealLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	created, _, err := s.CreateMealLog(ctx, createTestMealLog("u1", "2026-10-19"))
	require.NoError(t, err)

	found, ok, err := s.FindMealLog(ctx, "u1", model.SlotLunch, "2026-10-19")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)

	_, ok, err = s.FindMealLog(ctx, "u1", model.SlotDinner, "2026-10-19")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkSynced_OnlyGivenIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, u := range []string{"u1", "u2", "u3"} {
		l, _, err := s.CreateMealLog(ctx, createTestMealLog(u, "2026-10-19"))
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	require.NoError(t, s.MarkSynced(ctx, ids[:2]))
	require.NoError(t, s.MarkSynced(ctx, nil))

	pending, err := s.PendingMealLogs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMealLogs_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestMealLog("u1", "2026-10-19")
	b := createTestMealLog("u2", "2026-10-19")
	b.DiningHallID = 5
	c := createTestMealLog("u1", "2026-10-18")
	for _, l := range []model.MealLog{a, b, c} {
		_, _, err := s.CreateMealLog(ctx, l)
		require.NoError(t, err)
	}

	logs, err := s.MealLogs(ctx, MealLogFilter{Date: "2026-10-19", DiningHallID: 3})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u1", logs[0].UserID)

	logs, err = s.MealLogs(ctx, MealLogFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2026-10-18", logs[0].Date, "newest first")
}

func TestServedCounts_FlagsBrokenOut(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ordinary := createTestMealLog("u1", "2026-10-19")
	manual := createTestMealLog("u2", "2026-10-19")
	manual.IsManualOverride = true
	otherHall := createTestMealLog("u3", "2026-10-19")
	otherHall.DiningHallID = 4
	for _, l := range []model.MealLog{ordinary, manual, otherHall} {
		_, _, err := s.CreateMealLog(ctx, l)
		require.NoError(t, err)
	}

	counts, err := s.ServedCounts(ctx, "2026-10-19", model.SlotLunch, 3)
	require.NoError(t, err)
	assert.Equal(t, ServedCounts{Total: 2, Manual: 1}, counts)

	empty, err := s.ServedCounts(ctx, "2026-10-19", model.SlotDinner, 3)
	require.NoError(t, err)
	assert.Equal(t, ServedCounts{}, empty)
}
