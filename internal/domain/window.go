package domain

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("window end must be after start")

type TimeWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	TimeZone string    `json:"time_zone,omitempty"`
}

func NewTimeWindow(start, end time.Time, tz string) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, ErrInvalidWindow
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC(), TimeZone: tz}, nil
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Overlaps uses half-open interval semantics.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return o.Start.Before(w.End) && o.End.After(w.Start)
}
