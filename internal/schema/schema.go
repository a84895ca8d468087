// Package schema declares the field constraints of an event and turns a raw
// form payload into a normalized model.EventInput.
//
// Every rule is evaluated on each call; the result carries one error per
// failing field (plus one per out-of-range recurring day) instead of stopping
// at the first problem.
package schema

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"evsched/internal/model"
)

// Code identifies why a field was rejected.
type Code string

const (
	CodeEmpty                 Code = "EMPTY"
	CodeInvalidDate           Code = "INVALID_DATE"
	CodeNotInteger            Code = "NOT_INTEGER"
	CodeTooShort              Code = "TOO_SHORT"
	CodeTooLong               Code = "TOO_LONG"
	CodeOutOfRange            Code = "OUT_OF_RANGE"
	CodeMissingRecurrenceDays Code = "MISSING_RECURRENCE_DAYS"
)

const (
	MinDuration = 1
	MaxDuration = 1440
)

var messages = map[Code]string{
	CodeEmpty:                 "Name is required",
	CodeInvalidDate:           "Invalid date and time",
	CodeNotInteger:            "Duration must be a whole number",
	CodeTooShort:              "Duration must be at least 1 minute",
	CodeTooLong:               "Duration cannot exceed 24 hours",
	CodeOutOfRange:            "Invalid days selected",
	CodeMissingRecurrenceDays: "Please select at least one day for recurring events",
}

// Candidate is an unvalidated event payload as submitted by a user.
// Duration is a float so that non-integral input can be reported; NaN stands
// for "not a number at all".
type Candidate struct {
	Name          string  `json:"name" validate:"required"`
	StartTime     string  `json:"start_time" validate:"instant"`
	Duration      float64 `json:"duration" validate:"integral,min=1,max=1440"`
	IsRecurring   bool    `json:"is_recurring"`
	RecurringDays []int   `json:"recurring_days" validate:"dive,min=0,max=6"`
}

// FieldError is a single rejected field. Index is the position inside
// recurring_days for per-element failures and -1 otherwise.
type FieldError struct {
	Field   string `json:"field"`
	Index   int    `json:"index"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Errors is the structured result of a failed validation.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

// Has reports whether field failed with code.
func (e Errors) Has(field string, code Code) bool {
	for _, fe := range e {
		if fe.Field == field && fe.Code == code {
			return true
		}
	}
	return false
}

// ByField returns the first message per field, for inline display.
func (e Errors) ByField() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Validator checks candidates. Wall-clock inputs without an offset are read
// in loc.
type Validator struct {
	loc      *time.Location
	validate *validator.Validate
}

// New builds a Validator. A nil loc means UTC.
func New(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	v := &Validator{
		loc:      loc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.validate.RegisterValidation("instant", func(fl validator.FieldLevel) bool {
		_, err := ParseInstant(fl.Field().String(), v.loc)
		return err == nil
	})
	_ = v.validate.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
	})
	v.validate.RegisterStructValidation(recurrenceRule, Candidate{})

	return v
}

// recurrenceRule attaches the cross-field failure to recurring_days. It also
// reports the range of a fractional duration, since the field tags stop at
// the first failure (integral).
func recurrenceRule(sl validator.StructLevel) {
	c := sl.Current().Interface().(Candidate)
	if d := c.Duration; !math.IsNaN(d) && !math.IsInf(d, 0) && d != math.Trunc(d) {
		switch {
		case d < MinDuration:
			sl.ReportError(c.Duration, "duration", "Duration", "min", strconv.Itoa(MinDuration))
		case d > MaxDuration:
			sl.ReportError(c.Duration, "duration", "Duration", "max", strconv.Itoa(MaxDuration))
		}
	}
	if c.IsRecurring && len(c.RecurringDays) == 0 {
		sl.ReportError(c.RecurringDays, "recurring_days", "RecurringDays", "recurrence_days", "")
	}
}

// Validate returns the normalized input, or the list of field errors.
// It never panics for malformed input.
func (v *Validator) Validate(c Candidate) (model.EventInput, Errors) {
	if err := v.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.EventInput{}, Errors{{Field: "", Index: -1, Code: CodeEmpty, Message: err.Error()}}
		}
		return model.EventInput{}, translate(verrs)
	}

	start, _ := ParseInstant(c.StartTime, v.loc)
	return model.EventInput{
		Name:          c.Name,
		StartTime:     start,
		Duration:      int(c.Duration),
		IsRecurring:   c.IsRecurring,
		RecurringDays: NormalizeDays(c.IsRecurring, c.RecurringDays),
	}, nil
}

// NormalizeDays sorts and de-duplicates the days of a recurring event, and
// clears them for a one-off event. The result is never nil.
func NormalizeDays(recurring bool, days []int) []int {
	if !recurring {
		return []int{}
	}
	out := slices.Clone(days)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int{}
	}
	return out
}

func translate(verrs validator.ValidationErrors) Errors {
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field, index := splitIndex(fe.Field())
		code := codeFor(field, index, fe.Tag())
		out = append(out, FieldError{
			Field:   field,
			Index:   index,
			Code:    code,
			Message: messages[code],
		})
	}
	return out
}

func codeFor(field string, index int, tag string) Code {
	switch field {
	case "name":
		return CodeEmpty
	case "start_time":
		return CodeInvalidDate
	case "duration":
		switch tag {
		case "min":
			return CodeTooShort
		case "max":
			return CodeTooLong
		default:
			return CodeNotInteger
		}
	case "recurring_days":
		if index < 0 {
			return CodeMissingRecurrenceDays
		}
		return CodeOutOfRange
	}
	return CodeEmpty
}

// splitIndex turns "recurring_days[3]" into ("recurring_days", 3).
func splitIndex(name string) (string, int) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, -1
	}
	n := 0
	for _, r := range name[open+1 : len(name)-1] {
		if r < '0' || r > '9' {
			return name, -1
		}
		n = n*10 + int(r-'0')
	}
	return name[:open], n
}
