package model

import (
	"slices"
	"time"
)

// Event is a scheduled event as returned by the backend.
// ID is assigned by the backend on creation and never changes afterwards.
type Event struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartTime     time.Time `json:"start_time"`
	Duration      int       `json:"duration"` // minutes, 1..1440
	IsRecurring   bool      `json:"is_recurring"`
	RecurringDays []int     `json:"recurring_days"` // 0 = Sunday .. 6 = Saturday
}

// EventInput is the payload for creating an event (no ID yet).
type EventInput struct {
	Name          string    `json:"name"`
	StartTime     time.Time `json:"start_time"`
	Duration      int       `json:"duration"`
	IsRecurring   bool      `json:"is_recurring"`
	RecurringDays []int     `json:"recurring_days"`
}

// EventPatch carries only the fields that changed during an edit.
// Nil fields are omitted from the PUT body.
type EventPatch struct {
	Name          *string    `json:"name,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	Duration      *int       `json:"duration,omitempty"`
	IsRecurring   *bool      `json:"is_recurring,omitempty"`
	RecurringDays *[]int     `json:"recurring_days,omitempty"`
}

// Page is one chunk of the server-side ordered list plus the authoritative
// total count at the time of the fetch.
type Page struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
}

// Deletion is the backend's answer to a delete. PatchEvent, when present, is
// the event that backfills the hole left in the locally cached window.
type Deletion struct {
	EventID    string `json:"eventId"`
	PatchEvent *Event `json:"patchEvent,omitempty"`
}

// End returns the instant the event finishes.
func (e Event) End() time.Time {
	return e.StartTime.Add(time.Duration(e.Duration) * time.Minute)
}

// Input drops the ID.
func (e Event) Input() EventInput {
	return EventInput{
		Name:          e.Name,
		StartTime:     e.StartTime,
		Duration:      e.Duration,
		IsRecurring:   e.IsRecurring,
		RecurringDays: slices.Clone(e.RecurringDays),
	}
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	e.RecurringDays = slices.Clone(e.RecurringDays)
	return e
}

// Apply merges the non-nil fields of p into a copy of e.
func (e Event) Apply(p EventPatch) Event {
	out := e.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.StartTime != nil {
		out.StartTime = *p.StartTime
	}
	if p.Duration != nil {
		out.Duration = *p.Duration
	}
	if p.IsRecurring != nil {
		out.IsRecurring = *p.IsRecurring
	}
	if p.RecurringDays != nil {
		out.RecurringDays = slices.Clone(*p.RecurringDays)
	}
	return out
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Name == nil && p.StartTime == nil && p.Duration == nil &&
		p.IsRecurring == nil && p.RecurringDays == nil
}

// Diff returns the fields of edited that differ from original.
func Diff(original Event, edited EventInput) EventPatch {
	var p EventPatch
	if original.Name != edited.Name {
		p.Name = &edited.Name
	}
	if !original.StartTime.Equal(edited.StartTime) {
		t := edited.StartTime
		p.StartTime = &t
	}
	if original.Duration != edited.Duration {
		d := edited.Duration
		p.Duration = &d
	}
	if original.IsRecurring != edited.IsRecurring {
		r := edited.IsRecurring
		p.IsRecurring = &r
	}
	if !sameDays(original.RecurringDays, edited.RecurringDays) {
		days := slices.Clone(edited.RecurringDays)
		if days == nil {
			days = []int{}
		}
		p.RecurringDays = &days
	}
	return p
}

// sameDays treats nil and empty as equal.
func sameDays(a, b []int) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}
