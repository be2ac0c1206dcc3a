package domain

import (
	"fmt"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

// AvailabilityRule is either a recurring weekly range (Days set, Date empty)
// or a date-specific override (Date set). An override with StartMinute ==
// EndMinute marks the whole date unavailable.
type AvailabilityRule struct {
	Days        []time.Weekday `json:"days,omitempty"`
	Date        string         `json:"date,omitempty"`
	StartMinute int            `json:"start_minute"`
	EndMinute   int            `json:"end_minute"`
}

func (r AvailabilityRule) IsOverride() bool { return r.Date != "" }

func (r AvailabilityRule) Validate() error {
	if r.StartMinute < 0 || r.EndMinute > 24*60 || r.EndMinute < r.StartMinute {
		return fmt.Errorf("invalid minute range %d-%d", r.StartMinute, r.EndMinute)
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return fmt.Errorf("invalid override date %q", r.Date)
		}
		return nil
	}
	if len(r.Days) == 0 {
		return fmt.Errorf("recurring rule without days")
	}
	return nil
}

type Schedule struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"user_id"`
	Name         string             `json:"name"`
	TimeZone     string             `json:"time_zone"`
	Availability []AvailabilityRule `json:"availability"`
}

func (s Schedule) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.TimeZone)
}

// Covers reports whether w lies fully inside the schedule's available time.
// Days are evaluated in the schedule's own time zone; overrides replace the
// recurring rules for their date.
func (s Schedule) Covers(w TimeWindow) (bool, error) {
	loc, err := s.Location()
	if err != nil {
		return false, err
	}

	start := w.Start.In(loc)
	end := w.End.In(loc)

	var intervals []TimeWindow
	y, m, d := start.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(end); day = day.AddDate(0, 0, 1) {
		intervals = append(intervals, s.intervalsOn(day, loc)...)
	}

	for _, iv := range mergeIntervals(intervals) {
		if !iv.Start.After(start) && !iv.End.Before(end) {
			return true, nil
		}
	}

	return false, nil
}

func (s Schedule) intervalsOn(day time.Time, loc *time.Location) []TimeWindow {
	date := day.Format(DateLayout)

	var overrides, recurring []AvailabilityRule
	for _, r := range s.Availability {
		switch {
		case r.IsOverride():
			if r.Date == date {
				overrides = append(overrides, r)
			}
		case containsWeekday(r.Days, day.Weekday()):
			recurring = append(recurring, r)
		}
	}

	rules := recurring
	if len(overrides) > 0 {
		rules = overrides
	}

	out := make([]TimeWindow, 0, len(rules))
	for _, r := range rules {
		if r.EndMinute <= r.StartMinute {
			continue
		}
		out = append(out, TimeWindow{
			Start: clockOn(day, r.StartMinute, loc),
			End:   clockOn(day, r.EndMinute, loc),
		})
	}

	return out
}

func clockOn(day time.Time, minute int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
}

func mergeIntervals(in []TimeWindow) []TimeWindow {
	if len(in) == 0 {
		return nil
	}

	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := []TimeWindow{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}

	return out
}

func containsWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// WeekdayMask packs days into a bit set, Sunday being bit 0.
func WeekdayMask(days []time.Weekday) int {
	mask := 0
	for _, d := range days {
		mask |= 1 << uint(d)
	}
	return mask
}

func WeekdaysFromMask(mask int) []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}
