package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealkiosk/internal/model"
)

func TestDecide(t *testing.T) {
	lunchAt3 := &model.MealConfig{UserID: "u1", Lunch: model.HallID(3)}
	overrideTo5 := &model.Override{ID: 1, UserID: "u1", MealType: model.SlotLunch, DiningHallID: 5}

	tests := []struct {
		name string
		cfg  *model.MealConfig
		ov   *model.Override
		slot string
		want Decision
	}{
		{"default hall", lunchAt3, nil, model.SlotLunch, Decision{Kind: Allowed, HallID: 3}},
		{"override supersedes default", lunchAt3, overrideTo5, model.SlotLunch, Decision{Kind: Allowed, HallID: 5, FromOverride: true}},
		{"override without config", nil, overrideTo5, model.SlotLunch, Decision{Kind: Allowed, HallID: 5, FromOverride: true}},
		{"no configuration", nil, nil, model.SlotLunch, Decision{Kind: Denied, Reason: ReasonNoConfiguration}},
		{"meal not configured", lunchAt3, nil, model.SlotDinner, Decision{Kind: Denied, Reason: ReasonMealNotConfigured}},
		{"snack with any config", &model.MealConfig{UserID: "u1"}, nil, model.SlotSnack, Decision{Kind: AllowedAnywhere}},
		{"snack without config", nil, nil, model.SlotSnack, Decision{Kind: Denied, Reason: ReasonNoConfiguration}},
		{"custom slot ignores override", nil, overrideTo5, "tea", Decision{Kind: Denied, Reason: ReasonNoConfiguration}},
		{"custom slot with config", lunchAt3, nil, "tea", Decision{Kind: AllowedAnywhere}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.cfg, tt.ov, tt.slot))
		})
	}
}

func TestDecide_OverridePrecedenceProperty(t *testing.T) {
	slots := []string{model.SlotMorningMeal, model.SlotBreakfast, model.SlotLunch, model.SlotDinner, model.SlotNightMeal}

	for _, slot := range slots {
		for h1 := int64(1); h1 <= 4; h1++ {
			for h2 := int64(1); h2 <= 4; h2++ {
				if h1 == h2 {
					continue
				}
				cfg := &model.MealConfig{
					UserID:      "u1",
					Breakfast:   model.HallID(h1),
					Lunch:       model.HallID(h1),
					Dinner:      model.HallID(h1),
					NightMeal:   model.HallID(h1),
					MorningMeal: model.HallID(h1),
				}
				ov := &model.Override{UserID: "u1", MealType: slot, DiningHallID: h2}

				d := Decide(cfg, ov, slot)
				require.Equal(t, Allowed, d.Kind, "slot=%s h1=%d h2=%d", slot, h1, h2)
				assert.Equal(t, h2, d.HallID, "slot=%s h1=%d h2=%d", slot, h1, h2)
				assert.False(t, d.AllowsHall(h1))
				assert.True(t, d.AllowsHall(h2))
			}
		}
	}
}

func TestDecision_AllowsHall(t *testing.T) {
	assert.True(t, Decision{Kind: AllowedAnywhere}.AllowsHall(9))
	assert.True(t, Decision{Kind: Allowed, HallID: 3}.AllowsHall(3))
	assert.False(t, Decision{Kind: Allowed, HallID: 3}.AllowsHall(4))
	assert.False(t, Decision{Kind: Denied}.AllowsHall(3))
}

type fakeSource struct {
	configs   map[string]model.MealConfig
	overrides map[string]model.Override
	err       error
	calls     []string
}

func (f *fakeSource) MealConfig(_ context.Context, userID string) (model.MealConfig, bool, error) {
	f.calls = append(f.calls, "config")
	if f.err != nil {
		return model.MealConfig{}, false, f.err
	}
	c, ok := f.configs[userID]
	return c, ok, nil
}

func (f *fakeSource) OverrideFor(_ context.Context, userID, date, meal string) (model.Override, bool, error) {
	f.calls = append(f.calls, "override")
	if f.err != nil {
		return model.Override{}, false, f.err
	}
	o, ok := f.overrides[userID+"|"+date+"|"+meal]
	return o, ok, nil
}

func TestResolver_Resolve(t *testing.T) {
	src := &fakeSource{
		configs: map[string]model.MealConfig{
			"u1": {UserID: "u1", Lunch: model.HallID(3)},
		},
		overrides: map[string]model.Override{
			"u1|2026-10-19|lunch": {ID: 1, UserID: "u1", DiningHallID: 5},
		},
	}
	r := NewResolver(src)
	ctx := context.Background()

	d, err := r.Resolve(ctx, "u1", model.SlotLunch, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, Decision{Kind: Allowed, HallID: 5, FromOverride: true}, d)
	assert.Equal(t, []string{"override"}, src.calls, "override short-circuits config lookup")

	d, err = r.Resolve(ctx, "u1", model.SlotLunch, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, Decision{Kind: Allowed, HallID: 3}, d)

	src.calls = nil
	d, err = r.Resolve(ctx, "u1", model.SlotSnack, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, AllowedAnywhere, d.Kind)
	assert.Equal(t, []string{"config"}, src.calls)

	d, err = r.Resolve(ctx, "u2", model.SlotLunch, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoConfiguration, d.Reason)
}

func TestResolver_SourceError(t *testing.T) {
	r := NewResolver(&fakeSource{err: errors.New("locked")})
	_, err := r.Resolve(context.Background(), "u1", model.SlotLunch, "2026-10-19")
	assert.ErrorContains(t, err, "locked")
}
