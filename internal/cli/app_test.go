package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/store"
	"github.com/roach88/mealkiosk/internal/testutil"
)

// cliHarness runs commands against a temporary database, an in-memory backend
// and a clock pinned to 12:00 on 2026-10-19, during lunch.
type cliHarness struct {
	t     *testing.T
	db    string
	cfg   string
	gw    *testutil.MemoryGateway
	clock *testutil.FixedClock
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	return &cliHarness{
		t:     t,
		db:    filepath.Join(dir, "kiosk.db"),
		cfg:   filepath.Join(dir, "absent.yaml"),
		gw:    testutil.NewMemoryGateway(),
		clock: testutil.NewFixedClock(testutil.At(12, 0)),
	}
}

// withStore opens the harness database, seeds defaults and calls fn.
func (h *cliHarness) withStore(fn func(ctx context.Context, s *store.Store)) {
	h.t.Helper()
	ctx := context.Background()
	s, err := store.Open(h.db)
	require.NoError(h.t, err)
	defer s.Close()
	require.NoError(h.t, s.SeedDefaults(ctx))
	fn(ctx, s)
}

// seedLunch configures hall 3 "East" with u1 (C1) and u2 (C2) eating lunch
// there and u3 (C3) with no configuration.
func (h *cliHarness) seedLunch() {
	h.t.Helper()
	h.withStore(func(ctx context.Context, s *store.Store) {
		require.NoError(h.t, s.SetConfig(ctx, model.KeyDiningHallID, "3"))
		require.NoError(h.t, s.ReplaceDiningHalls(ctx, []model.DiningHall{{ID: 3, Name: "East"}}))
		require.NoError(h.t, s.ReplaceEmployeesAndConfigs(ctx,
			[]model.Employee{
				{ID: "u1", IDCardNumber: "C1", Name: "Bat Dorj", IsActive: true},
				{ID: "u2", IDCardNumber: "C2", Name: "Saraa Bold", IsActive: true},
				{ID: "u3", IDCardNumber: "C3", Name: "Nomin Tsetseg", IsActive: true},
			},
			[]model.MealConfig{
				{UserID: "u1", Lunch: model.HallID(3)},
				{UserID: "u2", Lunch: model.HallID(3)},
			}))
	})
}

// run executes the root command with args and returns stdout.
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	return h.runContext(context.Background(), args...)
}

func (h *cliHarness) runContext(ctx context.Context, args ...string) (string, error) {
	h.t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Gateways: h.gw, Clock: h.clock})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", h.db, "--config", h.cfg}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// decode unmarshals the data of a JSON CLI response into dest.
func decode(t *testing.T, out string, dest any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, dest))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mealkiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
