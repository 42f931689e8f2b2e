package dashboard

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/authz"
	"github.com/roach88/mealkiosk/internal/mealclock"
	"github.com/roach88/mealkiosk/internal/model"
	"github.com/roach88/mealkiosk/internal/store"
	"github.com/roach88/mealkiosk/internal/testutil"
)

const testDate = "2026-10-19"

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExpected_Formula(t *testing.T) {
	configs := []model.MealConfig{
		{UserID: "stay", Lunch: model.HallID(3)},
		{UserID: "leaves", Lunch: model.HallID(3)},
		{UserID: "redundant", Lunch: model.HallID(3)},
		{UserID: "visitor", Lunch: model.HallID(4)},
		{UserID: "elsewhere", Lunch: model.HallID(4)},
	}
	overrides := []model.Override{
		{ID: 1, UserID: "leaves", MealType: model.SlotLunch, DiningHallID: 5},
		{ID: 2, UserID: "redundant", MealType: model.SlotLunch, DiningHallID: 3},
		{ID: 3, UserID: "visitor", MealType: model.SlotLunch, DiningHallID: 3},
		{ID: 4, UserID: "elsewhere", MealType: model.SlotDinner, DiningHallID: 3},
	}

	expected, here, inbound, away := Expected(configs, overrides, 3, model.SlotLunch)
	assert.Equal(t, 3, here)
	assert.Equal(t, 1, inbound)
	assert.Equal(t, 1, away)
	assert.Equal(t, 3, expected)
}

func TestExpected_SnackCountsEveryConfig(t *testing.T) {
	configs := []model.MealConfig{{UserID: "a"}, {UserID: "b", Lunch: model.HallID(9)}}
	expected, _, _, _ := Expected(configs, nil, 3, model.SlotSnack)
	assert.Equal(t, 2, expected)
}

func TestExpected_FirstOverrideWins(t *testing.T) {
	configs := []model.MealConfig{{UserID: "u1", Lunch: model.HallID(3)}}
	overrides := []model.Override{
		{ID: 8, UserID: "u1", MealType: model.SlotLunch, DiningHallID: 3},
		{ID: 2, UserID: "u1", MealType: model.SlotLunch, DiningHallID: 5},
	}
	expected, _, _, away := Expected(configs, overrides, 3, model.SlotLunch)
	assert.Equal(t, 0, expected)
	assert.Equal(t, 1, away)
}

// Expected must equal a direct enumeration of every employee through the
// resolver, and never be negative.
func TestExpected_MatchesResolver(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	halls := []int64{1, 2, 3}
	slots := []string{model.SlotBreakfast, model.SlotLunch, model.SlotDinner, model.SlotSnack, model.SlotNightMeal}

	for round := 0; round < 20; round++ {
		s := createTestStore(t)

		var (
			employees []model.Employee
			configs   []model.MealConfig
			overrides []model.Override
		)
		pick := func() *int64 {
			if rng.Intn(4) == 0 {
				return nil
			}
			return model.HallID(halls[rng.Intn(len(halls))])
		}
		for i := 0; i < 30; i++ {
			id := fmt.Sprintf("u%02d", i)
			employees = append(employees, model.Employee{ID: id, IsActive: true})
			if rng.Intn(5) > 0 {
				configs = append(configs, model.MealConfig{
					UserID: id, Breakfast: pick(), Lunch: pick(), Dinner: pick(), NightMeal: pick(),
				})
			}
			for _, slot := range slots {
				if rng.Intn(4) == 0 {
					overrides = append(overrides, model.Override{
						ID:           int64(len(overrides) + 1),
						UserID:       id,
						Date:         testDate,
						MealType:     slot,
						DiningHallID: halls[rng.Intn(len(halls))],
					})
				}
			}
		}
		require.NoError(t, s.ReplaceEmployeesAndConfigs(ctx, employees, configs))
		require.NoError(t, s.ReplaceOverrides(ctx, overrides))

		resolver := authz.NewResolver(s)
		agg := New(s, nil, nil)

		for _, hall := range halls {
			for _, slot := range slots {
				want := 0
				for _, e := range employees {
					d, err := resolver.Resolve(ctx, e.ID, slot, testDate)
					require.NoError(t, err)
					if d.AllowsHall(hall) {
						want++
					}
				}

				c, err := agg.Counts(ctx, hall, slot, testDate)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, c.Expected, 0)
				assert.Equal(t, want, c.Expected, "round=%d hall=%d slot=%s", round, hall, slot)
			}
		}
	}
}

func TestCounts_ServedAndRemaining(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceEmployeesAndConfigs(ctx, nil, []model.MealConfig{
		{UserID: "u1", Lunch: model.HallID(3)},
		{UserID: "u2", Lunch: model.HallID(3)},
	}))
	for i, l := range []model.MealLog{
		{UserID: "u1", SyncKey: "k1"},
		{UserID: "u1", SyncKey: "k1-extra", IsExtraServing: true},
		{UserID: "unknown", SyncKey: "k3", IsManualOverride: true},
	} {
		l.MealType = model.SlotLunch
		l.DiningHallID = 3
		l.Date = testDate
		l.ScannedAt = testutil.At(12, i)
		_, _, err := s.CreateMealLog(ctx, l)
		require.NoError(t, err)
	}

	c, err := New(s, nil, nil).Counts(ctx, 3, model.SlotLunch, testDate)
	require.NoError(t, err)
	assert.Equal(t, Counts{Expected: 2, Served: 3, Manual: 1, Extra: 1, Remaining: 0, DefaultHere: 2}, c)
}

func TestSummary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SeedDefaults(ctx))

	clk := testutil.NewFixedClock(testutil.At(12, 0))
	agg := New(s, mealclock.NewTracker(s, clk), clk)

	sum, err := agg.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDate, sum.Date)
	assert.Nil(t, sum.DiningHallID)
	assert.Nil(t, sum.Counts)
	require.NotNil(t, sum.Meal)
	assert.Equal(t, model.SlotLunch, sum.Meal.ID)

	require.NoError(t, s.SetConfig(ctx, model.KeyDiningHallID, "3"))
	require.NoError(t, s.ReplaceDiningHalls(ctx, []model.DiningHall{{ID: 3, Name: "East"}}))
	require.NoError(t, s.SetConfig(ctx, model.KeyActiveChefName, "Ann"))

	sum, err = agg.Summary(ctx)
	require.NoError(t, err)
	require.NotNil(t, sum.DiningHall)
	assert.Equal(t, "East", sum.DiningHall.Name)
	assert.Equal(t, "Ann", sum.ChefName)
	require.NotNil(t, sum.Counts)
	assert.Equal(t, 0, sum.Counts.Expected)

	clk.Set(testutil.At(10, 0))
	sum, err = agg.Summary(ctx)
	require.NoError(t, err)
	assert.Nil(t, sum.Meal)
	assert.Nil(t, sum.Counts)
}
