package schema

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for start_time. The first two carry an offset; the rest
// are what an HTML datetime-local input submits.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseInstant parses s into an absolute instant. Inputs without an offset
// are read as wall-clock time in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	for i, layout := range instantLayouts {
		var (
			t   time.Time
			err error
		)
		if i < 2 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format: " + s)
}

// CandidateFromForm reads a submitted HTML form.
//
//   - duration that is not a number becomes NaN (reported as NOT_INTEGER)
//   - is_recurring is a checkbox: any of "on", "true", "1" means checked
//   - recurring_days may repeat; values that are not integers become -1 so
//     they surface as OUT_OF_RANGE instead of being silently dropped
func CandidateFromForm(form url.Values) Candidate {
	c := Candidate{
		Name:      form.Get("name"),
		StartTime: form.Get("start_time"),
		Duration:  math.NaN(),
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(form.Get("duration")), 64); err == nil {
		c.Duration = d
	}
	switch strings.ToLower(form.Get("is_recurring")) {
	case "on", "true", "1":
		c.IsRecurring = true
	}
	for _, raw := range form["recurring_days"] {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			n = -1
		}
		c.RecurringDays = append(c.RecurringDays, n)
	}
	return c
}

// FromEvent builds the candidate an edit form starts from.
func FromEvent(name string, start time.Time, duration int, recurring bool, days []int) Candidate {
	return Candidate{
		Name:          name,
		StartTime:     start.Format(time.RFC3339Nano),
		Duration:      float64(duration),
		IsRecurring:   recurring,
		RecurringDays: append([]int(nil), days...),
	}
}
