package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"evsched/internal/model"
)

const productID = "-//evsched//events//EN"

// Export renders events as an RFC 5545 calendar. DTSTART/DTEND are written
// in UTC; BYDAY is shifted accordingly so that weekly events keep their
// weekday in loc.
func Export(events []model.Event, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Scheduled events")
	cal.SetXWRTimezone(loc.String())

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Name)
		ve.SetStartAt(ev.StartTime.UTC())
		ve.SetEndAt(ev.End().UTC())
		if ev.IsRecurring && len(ev.RecurringDays) > 0 {
			shift := dayShift(ev.StartTime.In(loc), ev.StartTime.UTC())
			ve.AddProperty(ical.ComponentPropertyRrule, ruleString(shiftDays(ev.RecurringDays, shift)))
		}
	}
	return cal.Serialize()
}

// dayShift returns how many days to add to a weekday seen at from to get the
// same instant's weekday at to (0, 1 or 6).
func dayShift(from, to time.Time) int {
	return (int(to.Weekday()) - int(from.Weekday()) + 7) % 7
}

func shiftDays(days []int, shift int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, (d+shift)%7)
	}
	return out
}
