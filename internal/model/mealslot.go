package model

// Meal slot ids seeded by default.
const (
	SlotMorningMeal = "morning_meal"
	SlotBreakfast   = "breakfast"
	SlotLunch       = "lunch"
	SlotSnack       = "snack"
	SlotDinner      = "dinner"
	SlotNightMeal   = "nightmeal"
)

// hallField reads one meal's hall assignment from a config row.
type hallField func(*MealConfig) *int64

// mealFields maps a slot id to its dedicated config field. Slots missing from
// the table (snack, custom slots) have no field: any config row authorizes them.
var mealFields = map[string]hallField{
	SlotMorningMeal: func(c *MealConfig) *int64 { return c.MorningMeal },
	SlotBreakfast:   func(c *MealConfig) *int64 { return c.Breakfast },
	SlotLunch:       func(c *MealConfig) *int64 { return c.Lunch },
	SlotDinner:      func(c *MealConfig) *int64 { return c.Dinner },
	SlotNightMeal:   func(c *MealConfig) *int64 { return c.NightMeal },
}

// HasDedicatedField reports whether slotID is backed by a config field.
func HasDedicatedField(slotID string) bool {
	_, ok := mealFields[slotID]
	return ok
}

// HallFor returns the hall configured for slotID. dedicated is false when the
// slot has no config field; hall is nil when the field is unset.
func (c *MealConfig) HallFor(slotID string) (hall *int64, dedicated bool) {
	field, ok := mealFields[slotID]
	if !ok {
		return nil, false
	}
	return field(c), true
}

// DefaultMealSlots is the schedule seeded on first run.
func DefaultMealSlots() []MealSlot {
	return []MealSlot{
		{ID: SlotMorningMeal, Name: "Өглөөний хоол", StartTime: "05:00", EndTime: "06:30", IsActive: false, SortOrder: 0},
		{ID: SlotBreakfast, Name: "Өглөөний цай", StartTime: "07:00", EndTime: "09:00", IsActive: true, SortOrder: 1},
		{ID: SlotLunch, Name: "Өдрийн хоол", StartTime: "11:30", EndTime: "13:30", IsActive: true, SortOrder: 2},
		{ID: SlotSnack, Name: "Оройн цай", StartTime: "15:00", EndTime: "16:00", IsActive: true, SortOrder: 3},
		{ID: SlotDinner, Name: "Оройн хоол", StartTime: "17:30", EndTime: "19:30", IsActive: true, SortOrder: 4},
		{ID: SlotNightMeal, Name: "Шөнийн хоол", StartTime: "23:00", EndTime: "01:00", IsActive: false, SortOrder: 5},
	}
}

// HallID is a convenience for building optional hall assignments.
func HallID(id int64) *int64 {
	return &id
}
