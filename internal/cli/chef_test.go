package cli

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/remote"
	"github.com/roach88/mealkiosk/internal/scan"
	"github.com/roach88/mealkiosk/internal/store"
)

func TestChef_LoginStampsScans(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()
	h.withStore(func(ctx context.Context, s *store.Store) {
		require.NoError(t, s.ReplaceChefs(ctx, []model.Chef{
			{ID: 7, Name: "Oyun", DiningHallID: 3, PIN: "4321", IsActive: true},
		}))
	})

	_, err := h.run("chef", "login", "0000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, scan.ErrInvalidPIN)

	out, err := h.run("chef", "login", "4321")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as Oyun\n", out)

	_, err = h.run("scan", badge("C1"))
	require.NoError(t, err)

	out, err = h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "Chef:          Oyun\n")

	_, err = h.run("chef", "logout")
	require.NoError(t, err)

	h.withStore(func(ctx context.Context, s *store.Store) {
		logs, err := s.MealLogs(ctx, store.MealLogFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].ChefID)
		assert.Equal(t, int64(7), *logs[0].ChefID)

		ks, err := s.KioskSettings(ctx)
		require.NoError(t, err)
		assert.Nil(t, ks.ActiveChefID)
	})
}

func TestChef_AddListDisable(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	out, err := h.run("--format", "json", "chef", "add", "Nomin", "5555")
	require.NoError(t, err)
	var chef model.Chef
	decode(t, out, &chef)
	assert.Equal(t, "Nomin", chef.Name)
	assert.Equal(t, int64(3), chef.DiningHallID)
	assert.NotZero(t, chef.ID)
	assert.Equal(t, 1, h.gw.Count(remote.TableChefs))

	out, err = h.run("chef", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Nomin")
	assert.Contains(t, out, "true")

	_, err = h.run("chef", "disable", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("chef", "disable", strconv.FormatInt(chef.ID, 10))
	require.NoError(t, err)

	var rows []remote.ChefRow
	require.NoError(t, h.gw.Rows(remote.TableChefs, &rows))
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].IsActive)
	assert.False(t, *rows[0].IsActive)

	_, err = h.run("chef", "login", "5555")
	require.Error(t, err, "disabled chefs cannot log in")
}

func TestChef_AddValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("chef", "add", "Nomin", "12")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("chef", "add", "Nomin", "5555")
	require.Error(t, err, "no dining hall configured")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("chef", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
