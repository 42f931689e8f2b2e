package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/scan"
)

func badge(code string) string {
	return `{"id_card_number":"` + code + `"}`
}

func TestScan_SuccessThenDoubleScan(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	out, err := h.run("scan", badge("C1"))
	require.NoError(t, err)
	assert.Contains(t, out, "[success] enjoy your meal")
	assert.Contains(t, out, "Employee: Bat Dorj")
	assert.Contains(t, out, "Record:   "+model.SyncKey("u1", model.SlotLunch, "2026-10-19"))

	out, err = h.run("scan", badge("C1"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Decision required (double_scan)")

	out, err = h.run("scan", badge("C1"), "--approve", "extra")
	require.NoError(t, err)
	assert.Contains(t, out, "extra serving approved")

	out, err = h.run("--format", "json", "logs")
	require.NoError(t, err)
	var logs []model.MealLog
	decode(t, out, &logs)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].IsExtraServing, "newest first")
	assert.False(t, logs[1].IsExtraServing)
}

func TestScan_UnauthorizedNeedsManualApproval(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	_, err := h.run("scan", badge("C3"), "--approve", "extra")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, scan.ErrWrongDecision)

	out, err := h.run("--format", "json", "scan", badge("C3"), "--approve", "manual")
	require.NoError(t, err)
	var snap struct {
		Outcome *scan.Outcome `json:"outcome"`
	}
	decode(t, out, &snap)
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, scan.CodeManualApproved, snap.Outcome.Code)
	require.NotNil(t, snap.Outcome.Log)
	assert.True(t, snap.Outcome.Log.IsManualOverride)
}

func TestScan_Rejected(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	out, err := h.run("scan", "not json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), scan.CodeMalformed)
	assert.Contains(t, out, "[error] malformed code")
}

func TestScan_Manual(t *testing.T) {
	h := newHarness(t)
	h.seedLunch()

	out, err := h.run("scan", "--manual", "u3")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] recorded")
	assert.Contains(t, out, "Employee: Nomin Tsetseg")

	_, err = h.run("scan", "--manual", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, scan.ErrEmployeeNotFound)
}

func TestScan_InvalidFlags(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("scan", badge("C1"), "--approve", "always")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("scan", "--manual", "u1", "--approve", "manual")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
