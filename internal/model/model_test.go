package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = Event{
	ID:            "a",
	Name:          "Standup",
	StartTime:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	Duration:      15,
	IsRecurring:   true,
	RecurringDays: []int{1, 3},
}

func TestDiff_OnlyChangedFields(t *testing.T) {
	edited := base.Input()
	edited.Duration = 30
	edited.RecurringDays = []int{1, 3, 5}

	p := Diff(base, edited)

	assert.Nil(t, p.Name)
	assert.Nil(t, p.StartTime)
	assert.Nil(t, p.IsRecurring)
	require.NotNil(t, p.Duration)
	assert.Equal(t, 30, *p.Duration)
	require.NotNil(t, p.RecurringDays)
	assert.Equal(t, []int{1, 3, 5}, *p.RecurringDays)

	body, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"duration":30,"recurring_days":[1,3,5]}`, string(body))
}

func TestDiff_SameInstantDifferentZone(t *testing.T) {
	edited := base.Input()
	edited.StartTime = base.StartTime.In(time.FixedZone("KST", 9*3600))

	assert.True(t, Diff(base, edited).Empty())
}

func TestDiff_ClearedDaysAreSentEmpty(t *testing.T) {
	edited := base.Input()
	edited.IsRecurring = false
	edited.RecurringDays = nil

	p := Diff(base, edited)
	require.NotNil(t, p.RecurringDays)
	assert.Equal(t, []int{}, *p.RecurringDays)

	body, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_recurring":false,"recurring_days":[]}`, string(body))
}

func TestApply_ReturnsCopy(t *testing.T) {
	name := "Retro"
	days := []int{5}
	got := base.Apply(EventPatch{Name: &name, RecurringDays: &days})

	assert.Equal(t, "Retro", got.Name)
	assert.Equal(t, []int{5}, got.RecurringDays)
	assert.Equal(t, base.Duration, got.Duration)

	assert.Equal(t, "Standup", base.Name)
	assert.Equal(t, []int{1, 3}, base.RecurringDays)

	days[0] = 6
	assert.Equal(t, []int{5}, got.RecurringDays)
}

func TestEnd(t *testing.T) {
	assert.Equal(t, base.StartTime.Add(15*time.Minute), base.End())
}
