package store

// Table names a store table in change notifications.
type Table string

const (
	TableEmployees   Table = "employees"
	TableMealConfigs Table = "meal_configs"
	TableOverrides   Table = "daily_overrides"
	TableDiningHalls Table = "dining_halls"
	TableChefs       Table = "chefs"
	TableMealSlots   Table = "meal_slots"
	TableMealLogs    Table = "meal_logs"
	TableKioskConfig Table = "kiosk_config"
	TableSyncRuns    Table = "sync_runs"
)

// Change describes a committed mutation.
type Change struct {
	Tables []Table
}

// Touches reports whether the change affected t.
func (c Change) Touches(t Table) bool {
	for _, ct := range c.Tables {
		if ct == t {
			return true
		}
	}
	return false
}

// Subscribe registers fn to be called after every committed mutation.
// fn runs synchronously on the writer's goroutine and must not block or call
// back into the store's write methods. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(tables ...Table) {
	if len(tables) == 0 {
		return
	}

	s.obsMu.Lock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	change := Change{Tables: tables}
	for _, fn := range fns {
		fn(change)
	}
}
