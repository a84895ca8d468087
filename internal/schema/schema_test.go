package schema

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCandidate() Candidate {
	return Candidate{
		Name:      "Team Meeting",
		StartTime: "2025-03-10T09:00:00Z",
		Duration:  30,
	}
}

func TestValidate_AcceptsOneOffEvent(t *testing.T) {
	v := New(time.UTC)

	in, errs := v.Validate(validCandidate())
	require.Nil(t, errs)

	assert.Equal(t, "Team Meeting", in.Name)
	assert.True(t, in.StartTime.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, in.Duration)
	assert.False(t, in.IsRecurring)
	assert.NotNil(t, in.RecurringDays)
	assert.Empty(t, in.RecurringDays)
}

func TestValidate_NormalizesRecurringDays(t *testing.T) {
	v := New(time.UTC)
	c := validCandidate()
	c.IsRecurring = true
	c.RecurringDays = []int{5, 1, 3, 1}

	in, errs := v.Validate(c)
	require.Nil(t, errs)
	assert.Equal(t, []int{1, 3, 5}, in.RecurringDays)
}

func TestValidate_ClearsDaysForOneOffEvent(t *testing.T) {
	v := New(time.UTC)
	c := validCandidate()
	c.RecurringDays = []int{2, 4}

	in, errs := v.Validate(c)
	require.Nil(t, errs)
	assert.Empty(t, in.RecurringDays)
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Candidate)
		field  string
		code   Code
	}{
		{"empty name", func(c *Candidate) { c.Name = "" }, "name", CodeEmpty},
		{"garbage start", func(c *Candidate) { c.StartTime = "next tuesday" }, "start_time", CodeInvalidDate},
		{"empty start", func(c *Candidate) { c.StartTime = "" }, "start_time", CodeInvalidDate},
		{"fractional duration", func(c *Candidate) { c.Duration = 12.5 }, "duration", CodeNotInteger},
		{"NaN duration", func(c *Candidate) { c.Duration = math.NaN() }, "duration", CodeNotInteger},
		{"zero duration", func(c *Candidate) { c.Duration = 0 }, "duration", CodeTooShort},
		{"negative duration", func(c *Candidate) { c.Duration = -5 }, "duration", CodeTooShort},
		{"too long", func(c *Candidate) { c.Duration = 1441 }, "duration", CodeTooLong},
		{"day above range", func(c *Candidate) { c.IsRecurring = true; c.RecurringDays = []int{1, 7} }, "recurring_days", CodeOutOfRange},
		{"day below range", func(c *Candidate) { c.IsRecurring = true; c.RecurringDays = []int{-1} }, "recurring_days", CodeOutOfRange},
		{"recurring without days", func(c *Candidate) { c.IsRecurring = true }, "recurring_days", CodeMissingRecurrenceDays},
	}

	v := New(time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)

			_, errs := v.Validate(c)
			require.NotEmpty(t, errs)
			assert.True(t, errs.Has(tt.field, tt.code), "got %v", errs)
		})
	}
}

func TestValidate_BoundaryDurations(t *testing.T) {
	v := New(time.UTC)
	for _, d := range []float64{1, 1440} {
		c := validCandidate()
		c.Duration = d
		_, errs := v.Validate(c)
		assert.Nil(t, errs, "duration %v", d)
	}
}

func TestValidate_FractionalDurationReportsRangeToo(t *testing.T) {
	v := New(time.UTC)
	tests := []struct {
		duration float64
		want     []Code
	}{
		{0.5, []Code{CodeNotInteger, CodeTooShort}},
		{1440.5, []Code{CodeNotInteger, CodeTooLong}},
		{30.5, []Code{CodeNotInteger}},
	}
	for _, tt := range tests {
		c := validCandidate()
		c.Duration = tt.duration

		_, errs := v.Validate(c)
		var got []Code
		for _, fe := range errs {
			got = append(got, fe.Code)
		}
		assert.Equal(t, tt.want, got, "duration %v", tt.duration)
		assert.Equal(t, "Duration must be a whole number", errs.ByField()["duration"])
	}
}

func TestValidate_ReportsAllFieldsTogether(t *testing.T) {
	v := New(time.UTC)
	c := Candidate{
		Name:          "",
		StartTime:     "nope",
		Duration:      0,
		IsRecurring:   true,
		RecurringDays: nil,
	}

	_, errs := v.Validate(c)

	assert.True(t, errs.Has("name", CodeEmpty))
	assert.True(t, errs.Has("start_time", CodeInvalidDate))
	assert.True(t, errs.Has("duration", CodeTooShort))
	assert.True(t, errs.Has("recurring_days", CodeMissingRecurrenceDays))
	assert.Len(t, errs, 4)
}

func TestValidate_OutOfRangeIndexes(t *testing.T) {
	v := New(time.UTC)
	c := validCandidate()
	c.IsRecurring = true
	c.RecurringDays = []int{0, 9, 3, 8}

	_, errs := v.Validate(c)
	require.Len(t, errs, 2)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, 3, errs[1].Index)
	assert.Equal(t, "Invalid days selected", errs[0].Message)
}

func TestErrors_ByField(t *testing.T) {
	errs := Errors{
		{Field: "recurring_days", Index: 0, Code: CodeOutOfRange, Message: "first"},
		{Field: "recurring_days", Index: 1, Code: CodeOutOfRange, Message: "second"},
		{Field: "name", Index: -1, Code: CodeEmpty, Message: "Name is required"},
	}

	m := errs.ByField()
	assert.Equal(t, "first", m["recurring_days"])
	assert.Equal(t, "Name is required", m["name"])
	assert.Contains(t, errs.Error(), "name: Name is required")
}

func TestParseInstant(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	got, err := ParseInstant("2025-03-10T09:00", seoul)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))

	got, err = ParseInstant("2025-03-10T09:00:00.123+02:00", seoul)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 10, 7, 0, 0, 123000000, time.UTC)))

	_, err = ParseInstant("10/03/2025", seoul)
	assert.Error(t, err)
}

func TestCandidateFromForm(t *testing.T) {
	form := url.Values{
		"name":           {"Standup"},
		"start_time":     {"2025-03-10T09:00"},
		"duration":       {"15"},
		"is_recurring":   {"on"},
		"recurring_days": {"1", "x", "3"},
	}

	c := CandidateFromForm(form)
	assert.Equal(t, "Standup", c.Name)
	assert.Equal(t, 15.0, c.Duration)
	assert.True(t, c.IsRecurring)
	assert.Equal(t, []int{1, -1, 3}, c.RecurringDays)

	c = CandidateFromForm(url.Values{"duration": {"abc"}})
	assert.True(t, math.IsNaN(c.Duration))
	assert.False(t, c.IsRecurring)

	_, errs := New(time.UTC).Validate(c)
	assert.True(t, errs.Has("duration", CodeNotInteger))
}
