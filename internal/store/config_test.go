package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
)

func TestConfig_SetGetDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetConfig(ctx, model.KeyBackendURL)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, model.KeyBackendURL, "https://a"))
	require.NoError(t, s.SetConfig(ctx, model.KeyBackendURL, "https://b"))

	v, ok, err := s.GetConfig(ctx, model.KeyBackendURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://b", v)

	require.NoError(t, s.DeleteConfig(ctx, model.KeyBackendURL))
	require.NoError(t, s.DeleteConfig(ctx, model.KeyBackendURL))
	_, ok, err = s.GetConfig(ctx, model.KeyBackendURL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfig_SetConfigsAndDeleteMany(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfigs(ctx, map[string]string{
		model.KeyActiveChefID:   "4",
		model.KeyActiveChefName: "Ann",
	}))
	all, err := s.AllConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{model.KeyActiveChefID: "4", model.KeyActiveChefName: "Ann"}, all)

	require.NoError(t, s.DeleteConfig(ctx, model.KeyActiveChefID, model.KeyActiveChefName))
	all, err = s.AllConfig(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedDefaults(ctx))
	first, ok, err := s.GetConfig(ctx, model.KeyDeviceUUID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	require.NoError(t, s.SetConfig(ctx, model.KeyAdminPIN, "9999"))
	require.NoError(t, s.UpsertMealSlot(ctx, model.MealSlot{ID: model.SlotLunch, Name: "Lunch", StartTime: "12:00", EndTime: "14:00", IsActive: true, SortOrder: 2}))

	require.NoError(t, s.SeedDefaults(ctx))

	second, _, err := s.GetConfig(ctx, model.KeyDeviceUUID)
	require.NoError(t, err)
	assert.Equal(t, first, second, "device uuid is generated once")

	pin, _, err := s.GetConfig(ctx, model.KeyAdminPIN)
	require.NoError(t, err)
	assert.Equal(t, "9999", pin)

	slots, err := s.MealSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	for _, slot := range slots {
		if slot.ID == model.SlotLunch {
			assert.Equal(t, "12:00", slot.StartTime, "seeding must not overwrite edits")
		}
	}
	assert.Equal(t, model.SlotMorningMeal, slots[0].ID)
	assert.Equal(t, model.SlotNightMeal, slots[5].ID)
}

func TestKioskSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ks, err := s.KioskSettings(ctx)
	require.NoError(t, err)
	assert.False(t, ks.HasDiningHall)
	assert.Nil(t, ks.ActiveChefID)

	require.NoError(t, s.SetConfig(ctx, model.KeyDiningHallID, "3"))
	require.NoError(t, s.SetConfig(ctx, model.KeyActiveChefID, "12"))
	require.NoError(t, s.SetConfig(ctx, model.KeyActiveChefName, "Ann"))
	require.NoError(t, s.SetConfig(ctx, model.KeyDeviceUUID, "dev"))

	ks, err = s.KioskSettings(ctx)
	require.NoError(t, err)
	assert.True(t, ks.HasDiningHall)
	assert.Equal(t, int64(3), ks.DiningHallID)
	require.NotNil(t, ks.ActiveChefID)
	assert.Equal(t, int64(12), *ks.ActiveChefID)
	assert.Equal(t, "Ann", ks.ActiveChefName)
	assert.Equal(t, "dev", ks.DeviceUUID)
}

func TestDiningHallID_NonNumeric(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, model.KeyDiningHallID, "north"))
	_, ok, err := s.DiningHallID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncRuns_Lifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	okID, err := s.StartSyncRun(ctx, model.OpPullDiningHalls, at)
	require.NoError(t, err)
	require.NoError(t, s.FinishSyncRun(ctx, okID, 4, nil, at.Add(time.Second)))

	failID, err := s.StartSyncRun(ctx, model.OpPushMealLogs, at.Add(2*time.Second))
	require.NoError(t, err)
	require.NoError(t, s.FinishSyncRun(ctx, failID, 0, errors.New("connection refused"), at.Add(3*time.Second)))

	assert.Error(t, s.FinishSyncRun(ctx, okID, 1, nil, at), "terminal runs are not mutated")

	runs, err := s.RecentSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, model.OpPushMealLogs, runs[0].Type)
	assert.Equal(t, model.RunFailed, runs[0].Status)
	assert.Equal(t, "connection refused", runs[0].Error)

	assert.Equal(t, model.RunSuccess, runs[1].Status)
	assert.Equal(t, 4, runs[1].RecordCount)
	require.NotNil(t, runs[1].CompletedAt)
	assert.True(t, at.Add(time.Second).Equal(*runs[1].CompletedAt))
}
