package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/testutil"
)

func TestManualEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// No meal configuration: manual entry bypasses authorization.
	f.employees(t, []model.Employee{employee("u1")}, nil)

	out, err := f.proc.ManualEntry(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, CodeManualApproved, out.Code)
	require.NotNil(t, out.Log)
	assert.True(t, out.Log.IsManualOverride)
	assert.Equal(t, "u1", out.Log.UserID)
	assert.Equal(t, "CARD-u1", out.Log.IDCardNumber)
	assert.Equal(t, model.SyncKey("u1", model.SlotLunch, testDate), out.Log.SyncKey)
	assert.Equal(t, Idle, f.proc.State().State, "manual entry leaves the scan state machine alone")

	again, err := f.proc.ManualEntry(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyRecorded, again.Code)
	assert.Len(t, f.logs(t), 1)
}

// An open unauthorized prompt approved after a manual entry for the same
// employee must not produce a second non-extra record.
func TestManualEntry_ThenApproveManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.employees(t, []model.Employee{employee("u1")}, nil)

	snap, err := f.proc.Scan(ctx, badge("CARD-u1"))
	require.NoError(t, err)
	require.Equal(t, AwaitingDecision, snap.State)

	out, err := f.proc.ManualEntry(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, CodeManualApproved, out.Code)

	snap, err = f.proc.ApproveManual(ctx)
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyRecorded, snap.Outcome.Code)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].IsExtraServing)
	assert.Equal(t, model.SyncKey("u1", model.SlotLunch, testDate), logs[0].SyncKey)
}

func TestManualEntry_AfterScanIsAlreadyRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.employees(t, []model.Employee{employee("u1")}, []model.MealConfig{{UserID: "u1", Lunch: model.HallID(3)}})

	snap, err := f.proc.Scan(ctx, badge("CARD-u1"))
	require.NoError(t, err)
	require.Equal(t, CodeSuccess, snap.Outcome.Code)

	out, err := f.proc.ManualEntry(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, KindWarning, out.Kind)
	assert.Equal(t, CodeAlreadyRecorded, out.Code)
	assert.Len(t, f.logs(t), 1)
}

func TestManualEntry_UnknownEmployee(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.ManualEntry(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestManualEntry_OutsideMealPeriod(t *testing.T) {
	f := newFixture(t)
	f.employees(t, []model.Employee{employee("u1")}, nil)
	f.clock.Set(testutil.At(10, 0))

	out, err := f.proc.ManualEntry(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, KindError, out.Kind)
	assert.Equal(t, CodeNotMealPeriod, out.Code)
	assert.Empty(t, f.logs(t))
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ReplaceChefs(ctx, []model.Chef{
		{ID: 7, Name: "Saraa", DiningHallID: 3, PIN: "4321", IsActive: true},
		{ID: 8, Name: "Retired", DiningHallID: 3, PIN: "9999", IsActive: false},
	}))
	f.employees(t, []model.Employee{employee("u1")}, []model.MealConfig{{UserID: "u1", Lunch: model.HallID(3)}})

	_, err := f.proc.Login(ctx, "0000")
	assert.ErrorIs(t, err, ErrInvalidPIN)
	_, err = f.proc.Login(ctx, "9999")
	assert.ErrorIs(t, err, ErrInvalidPIN, "inactive chefs cannot log in")
	_, err = f.proc.Login(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidPIN)

	chef, err := f.proc.Login(ctx, "4321")
	require.NoError(t, err)
	assert.Equal(t, int64(7), chef.ID)

	ks, err := f.store.KioskSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, ks.ActiveChefID)
	assert.Equal(t, int64(7), *ks.ActiveChefID)
	assert.Equal(t, "Saraa", ks.ActiveChefName)

	snap, err := f.proc.Scan(ctx, badge("CARD-u1"))
	require.NoError(t, err)
	require.NotNil(t, snap.Outcome)
	require.NotNil(t, snap.Outcome.Log)
	require.NotNil(t, snap.Outcome.Log.ChefID)
	assert.Equal(t, int64(7), *snap.Outcome.Log.ChefID)

	require.NoError(t, f.proc.Logout(ctx))
	ks, err = f.store.KioskSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, ks.ActiveChefID)
	assert.Empty(t, ks.ActiveChefName)
}

func TestVerifyAdminPIN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.proc.VerifyAdminPIN(ctx, model.DefaultAdminPIN))
	assert.ErrorIs(t, f.proc.VerifyAdminPIN(ctx, "0000"), ErrInvalidPIN)

	require.NoError(t, f.store.SetConfig(ctx, model.KeyAdminPIN, "8080"))
	assert.NoError(t, f.proc.VerifyAdminPIN(ctx, "8080"))
	assert.ErrorIs(t, f.proc.VerifyAdminPIN(ctx, model.DefaultAdminPIN), ErrInvalidPIN)

	require.NoError(t, f.store.DeleteConfig(ctx, model.KeyAdminPIN))
	assert.NoError(t, f.proc.VerifyAdminPIN(ctx, model.DefaultAdminPIN), "falls back to the default")
}
