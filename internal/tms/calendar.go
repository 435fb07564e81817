package tms

import (
	"context"
	"sort"
	"time"
)

// CalendarEntry is a load as it appears on the dispatch calendar.
type CalendarEntry struct {
	*LoadDetail
	Unassigned  bool      `json:"has_unassigned_leg"`
	FirstPickup time.Time `json:"first_pickup_time"`
}

// CalendarDay groups the loads picking up on one calendar day.
type CalendarDay struct {
	Date    string          `json:"date"`
	Entries []CalendarEntry `json:"loads"`
}

// LoadsForDay returns loads with a pickup stop on the given calendar
// day. Loads with an unassigned leg sort first so dispatchers see what
// still needs a driver, then by first pickup time.
func (s *Service) LoadsForDay(ctx context.Context, orgID string, day time.Time) ([]CalendarEntry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	loads, err := s.store.ListLoads(ctx, orgID, LoadFilter{
		PickupAfter:  start,
		PickupBefore: end,
		Limit:        100,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0, len(loads))
	for _, load := range loads {
		entries = append(entries, CalendarEntry{
			LoadDetail:  load,
			Unassigned:  load.HasUnassignedLeg(),
			FirstPickup: load.FirstPickupTime(),
		})
	}
	sortCalendar(entries)
	return entries, nil
}

// LoadsForWeek returns the seven calendar days of the week containing
// the given day. Weeks start on Sunday.
func (s *Service) LoadsForWeek(ctx context.Context, orgID string, day time.Time) ([]CalendarDay, error) {
	sunday := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	sunday = sunday.AddDate(0, 0, -int(sunday.Weekday()))

	days := make([]CalendarDay, 0, 7)
	for i := 0; i < 7; i++ {
		date := sunday.AddDate(0, 0, i)
		entries, err := s.LoadsForDay(ctx, orgID, date)
		if err != nil {
			return nil, err
		}
		days = append(days, CalendarDay{
			Date:    date.Format("2006-01-02"),
			Entries: entries,
		})
	}
	return days, nil
}

func sortCalendar(entries []CalendarEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Unassigned != entries[j].Unassigned {
			return entries[i].Unassigned
		}
		if !entries[i].FirstPickup.Equal(entries[j].FirstPickup) {
			return entries[i].FirstPickup.Before(entries[j].FirstPickup)
		}
		return entries[i].ID < entries[j].ID
	})
}
