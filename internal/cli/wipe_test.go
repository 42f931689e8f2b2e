package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/remote"
	"github.com/roach88/mealkiosk/internal/store"
)

func TestWipe(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()
	h.addPending("u1")

	_, err := h.run("wipe", "--pin", model.DefaultAdminPIN)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("wipe", "--yes", "--pin", "9999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err := h.run("wipe", "--yes", "--pin", model.DefaultAdminPIN)
	require.NoError(t, err)
	assert.Equal(t, "Local data wiped (1 pending meal logs discarded)\n", out)

	h.withStore(func(ctx context.Context, s *store.Store) {
		n, err := s.CountPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		emps, err := s.Employees(ctx)
		require.NoError(t, err)
		assert.Empty(t, emps)

		hall, ok, err := s.DiningHallID(ctx)
		require.NoError(t, err)
		assert.True(t, ok, "kiosk settings survive a wipe")
		assert.Equal(t, int64(3), hall)
	})
}

func TestWipe_RequiresPINFlag(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("wipe", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	out, err := h.run("register", "Door 2")
	require.NoError(t, err)
	assert.Equal(t, "Registered as Door 2\n", out)

	var rows []remote.KioskRow
	require.NoError(t, h.gw.Rows(remote.TableKiosks, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Door 2", rows[0].DeviceName)
	require.NotNil(t, rows[0].DiningHallID)
	assert.Equal(t, int64(3), *rows[0].DiningHallID)

	_, err = h.run("register", "Door 3")
	require.NoError(t, err)
	require.NoError(t, h.gw.Rows(remote.TableKiosks, &rows))
	require.Len(t, rows, 1, "registering again renames the kiosk")
	assert.Equal(t, "Door 3", rows[0].DeviceName)

	_, err = h.run("register", "  ")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRegister_BackendDown(t *testing.T) {
	h := newHarness(t)
	h.gw.Unconfigured = true

	_, err := h.run("register", "Door 2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
