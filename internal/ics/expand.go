package ics

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evsched/internal/log"
	"evsched/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// weekdays maps a recurring day (0 = Sunday .. 6 = Saturday) to its rrule
// weekday.
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	EventID string
	Name    string
	Start   time.Time
	End     time.Time
}

// NextOccurrence returns the first instance of ev starting strictly after
// after, converted to loc. ok is false when the event has no such instance:
// one-off events in the past, or recurring events without days.
func NextOccurrence(ev model.Event, after time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if !ev.IsRecurring {
		if ev.StartTime.After(after) {
			return ev.StartTime.In(loc), true
		}
		return time.Time{}, false
	}

	r, err := weeklyRule(ev, loc)
	if err != nil {
		appLog.Warn("recurrence rule rejected", "id", ev.ID, "err", err.Error())
		return time.Time{}, false
	}
	next := r.After(after, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.In(loc), true
}

// Occurrences expands events into instances overlapping [rangeStart,
// rangeEnd], sorted by start. Each recurring event contributes at most limit
// instances (0 picks a default).
func Occurrences(events []model.Event, rangeStart, rangeEnd time.Time, loc *time.Location, limit int) ([]Occurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("expand: range end is before range start")
	}
	if loc == nil {
		loc = time.Local
	}
	if limit <= 0 {
		limit = defaultMaxOccurrencesPerEvent
	}

	out := make([]Occurrence, 0, len(events))
	for _, ev := range events {
		dur := time.Duration(ev.Duration) * time.Minute

		if !ev.IsRecurring {
			if overlaps(ev.StartTime, ev.StartTime.Add(dur), rangeStart, rangeEnd) {
				out = append(out, occurrence(ev, ev.StartTime, dur, loc))
			}
			continue
		}

		r, err := weeklyRule(ev, loc)
		if err != nil {
			appLog.Warn("recurrence rule rejected", "id", ev.ID, "err", err.Error())
			continue
		}
		// Widen the lower bound so instances that started earlier but still
		// run inside the window are kept.
		starts := r.Between(rangeStart.Add(-dur), rangeEnd, true)
		if len(starts) > limit {
			appLog.Warn("occurrences truncated", "id", ev.ID, "cap", limit, "found", len(starts))
			starts = starts[:limit]
		}
		for _, s := range starts {
			if overlaps(s, s.Add(dur), rangeStart, rangeEnd) {
				out = append(out, occurrence(ev, s, dur, loc))
			}
		}
	}

	slices.SortStableFunc(out, func(a, b Occurrence) int { return a.Start.Compare(b.Start) })
	return out, nil
}

// weeklyRule anchors FREQ=WEEKLY;BYDAY=... on the event's start, expressed in
// loc so that the wall-clock time is kept across DST changes.
func weeklyRule(ev model.Event, loc *time.Location) (*rrule.RRule, error) {
	days, err := byDay(ev.RecurringDays)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   ev.StartTime.In(loc),
		Byweekday: days,
	})
}

func byDay(days []int) ([]rrule.Weekday, error) {
	if len(days) == 0 {
		return nil, errors.New("recurring event has no days")
	}
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, errors.New("recurring day out of range")
		}
		out = append(out, weekdays[d])
	}
	return out, nil
}

// ruleString renders the RRULE value for an event, e.g. FREQ=WEEKLY;BYDAY=MO,WE.
func ruleString(days []int) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			names = append(names, weekdays[d].String())
		}
	}
	return "FREQ=WEEKLY;BYDAY=" + strings.Join(names, ",")
}

func occurrence(ev model.Event, start time.Time, dur time.Duration, loc *time.Location) Occurrence {
	return Occurrence{
		EventID: ev.ID,
		Name:    ev.Name,
		Start:   start.In(loc),
		End:     start.Add(dur).In(loc),
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
