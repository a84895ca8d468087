package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "evsched/internal/log"
	"evsched/internal/schema"
)

// ParseImport turns the VEVENTs of an ICS payload into form candidates. It
// does not validate them: each candidate still goes through the create path,
// which reports bad fields per event.
//
//   - SUMMARY becomes the name.
//   - DTSTART becomes start_time, rendered in loc.
//   - DTEND minus DTSTART becomes the duration in minutes. Without DTEND,
//     the DURATION property is used instead.
//   - A weekly RRULE becomes recurring days (BYDAY, or DTSTART's weekday).
//     Other frequencies are imported as one-off events.
func ParseImport(body []byte, loc *time.Location) ([]schema.Candidate, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	out := make([]schema.Candidate, 0)
	for _, ve := range cal.Events() {
		out = append(out, candidateFromVEvent(ve, loc))
	}

	appLog.Info("ics import parsed", "event_count", len(out))
	return out, nil
}

func candidateFromVEvent(ve *ical.VEvent, loc *time.Location) schema.Candidate {
	var c schema.Candidate
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		c.Name = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		appLog.Warn("ics event without usable DTSTART", "uid", ve.Id(), "err", err.Error())
		return c
	}
	c.StartTime = start.In(loc).Format(time.RFC3339)

	if end, err := ve.GetEndAt(); err == nil {
		c.Duration = end.Sub(start).Minutes()
	} else if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		d, err := parseDuration(p.Value)
		if err != nil {
			appLog.Warn("ics DURATION ignored", "uid", ve.Id(), "duration", p.Value, "err", err.Error())
		} else {
			c.Duration = d.Minutes()
		}
	}

	p := ve.GetProperty(ical.ComponentPropertyRrule)
	if p == nil {
		return c
	}
	opt, err := rrule.StrToROption(p.Value)
	if err != nil {
		appLog.Warn("ics RRULE ignored", "uid", ve.Id(), "rrule", p.Value, "err", err.Error())
		return c
	}
	if opt.Freq != rrule.WEEKLY {
		appLog.Warn("ics RRULE is not weekly; importing one occurrence", "uid", ve.Id(), "rrule", p.Value)
		return c
	}

	// BYDAY is relative to DTSTART's own zone.
	shift := dayShift(start, start.In(loc))
	days := make([]int, 0, len(opt.Byweekday))
	for _, wd := range opt.Byweekday {
		// rrule numbers Monday as 0.
		days = append(days, (wd.Day()+1)%7)
	}
	if len(days) == 0 {
		days = append(days, int(start.Weekday()))
	}

	c.IsRecurring = true
	c.RecurringDays = schema.NormalizeDays(true, shiftDays(days, shift))
	return c
}

// parseDuration reads an RFC 5545 dur-value: [+|-]P followed by either nW or
// [nD][T[nH][nM][nS]].
func parseDuration(s string) (time.Duration, error) {
	raw := s
	s = strings.ToUpper(strings.TrimSpace(s))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	s = s[1:]

	units := map[byte]time.Duration{'W': 7 * 24 * time.Hour, 'D': 24 * time.Hour}
	var total time.Duration
	inTime, seen := false, false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			inTime = true
			units = map[byte]time.Duration{'H': time.Hour, 'M': time.Minute, 'S': time.Second}
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		unit, ok := units[s[i]]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total += time.Duration(n) * unit
		seen = true
		// Later units must be smaller.
		for k, v := range units {
			if v >= unit {
				delete(units, k)
			}
		}
		s = s[i+1:]
	}
	if !seen {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return sign * total, nil
}
