package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/testutil"
)

func TestSlots_List(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("--format", "json", "slots", "list")
	require.NoError(t, err)
	var slots []model.MealSlot
	decode(t, out, &slots)
	assert.Equal(t, model.DefaultMealSlots(), slots)
}

func TestSlots_EditMovesMealPeriod(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()
	h.clock.Set(testutil.At(14, 0))

	out, err := h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "Meal:          none active")

	_, err = h.run("slots", "set", model.SlotLunch, "--end", "14:30")
	require.NoError(t, err)

	out, err = h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "(11:30-14:30)")

	out, err = h.run("slots", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "14:30")
}

func TestSlots_CreateCustom(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("slots", "set", "tea", "--start", "15:00", "--end", "15:30")
	require.Error(t, err, "a new slot needs a name")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := h.run("--format", "json", "slots", "set", "tea", "--name", "Tea", "--start", "15:00", "--end", "15:30", "--active")
	require.NoError(t, err)
	var slot model.MealSlot
	decode(t, out, &slot)
	assert.Equal(t, model.MealSlot{ID: "tea", Name: "Tea", StartTime: "15:00", EndTime: "15:30", IsActive: true, SortOrder: 6}, slot)
}

func TestSlots_InvalidTime(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("slots", "set", model.SlotLunch, "--start", "25:00")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
