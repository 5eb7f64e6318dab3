package models

import (
	"fmt"
	"time"
)

type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is zero for a zero-length window.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Overlaps reports whether the two half-open windows [Start, End) share an
// instant. A zero-length window is the single instant Start.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	switch {
	case w.Duration() == 0:
		return o.contains(w.Start)
	case o.Duration() == 0:
		return w.contains(o.Start)
	}
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w TimeWindow) contains(t time.Time) bool {
	if w.Duration() == 0 {
		return t.Equal(w.Start)
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowAt builds the window starting today (in now's location) at hours:minutes
// and lasting waitMinutes.
func WindowAt(now time.Time, hours, minutes, waitMinutes int) (TimeWindow, error) {
	if hours < 0 || hours > 23 {
		return TimeWindow{}, fmt.Errorf("hours %d out of range", hours)
	}
	if minutes < 0 || minutes > 59 {
		return TimeWindow{}, fmt.Errorf("minutes %d out of range", minutes)
	}
	if waitMinutes < 0 {
		return TimeWindow{}, fmt.Errorf("wait %d must not be negative", waitMinutes)
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, now.Location())
	return TimeWindow{Start: start, End: start.Add(time.Duration(waitMinutes) * time.Minute)}, nil
}
