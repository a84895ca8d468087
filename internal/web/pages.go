package web

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"evsched/internal/events"
	"evsched/internal/ics"
	appLog "evsched/internal/log"
	"evsched/internal/model"
	"evsched/internal/schema"
)

// Layouts an HTML datetime-local input accepts, from coarsest to finest.
const (
	inputLayout        = "2006-01-02T15:04"
	inputLayoutSeconds = "2006-01-02T15:04:05"
	inputLayoutNanos   = "2006-01-02T15:04:05.999999999"
)

var dayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var templateFuncs = template.FuncMap{
	"pending": func(st events.Status) bool { return st.Pending() },
}

type dayOption struct {
	Value   int
	Label   string
	Checked bool
}

// formView is the create/edit form as rendered.
type formView struct {
	Action      string
	EditID      string
	Name        string
	StartTime   string
	StartStep   string
	Duration    string
	IsRecurring bool
	Days        []dayOption
	Errors      map[string]string
}

type eventRow struct {
	ID        string
	Name      string
	Start     string
	Duration  int
	Recurring bool
	Days      string
	Next      string
}

type pageData struct {
	Form      formView
	Events    []eventRow
	Shown     int
	Total     int
	HasMore   bool
	Loaded    bool
	Notice    *notice
	Mutations map[string]events.Status
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	n := takeFlash(w, r)
	if err := s.svc.Load(r.Context()); err != nil {
		appLog.Error("initial load failed", err)
		n = &notice{Title: "Failed to load events.", Body: "Please try again later.", Error: true}
	}

	form := s.emptyForm()
	if id := r.URL.Query().Get("edit"); id != "" {
		ev, ok := s.svc.Lookup(id)
		if !ok {
			n = &notice{Title: "Event not found", Error: true}
		} else {
			c := schema.FromEvent(ev.Name, ev.StartTime, ev.Duration, ev.IsRecurring, ev.RecurringDays)
			form = s.formFromCandidate(c, nil, ev.ID)
		}
	}

	s.render(w, http.StatusOK, form, n)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	c := schema.CandidateFromForm(r.PostForm)

	_, err := s.svc.Create(r.Context(), c)
	var verrs schema.Errors
	switch {
	case err == nil:
		redirectWith(w, r, notice{Title: "Event scheduled", Body: fmt.Sprintf("%q has been added.", strings.TrimSpace(c.Name))})
	case errors.As(err, &verrs):
		s.render(w, http.StatusUnprocessableEntity, s.formFromCandidate(c, verrs, ""), nil)
	default:
		appLog.Error("create failed", err, "name", c.Name)
		redirectWith(w, r, notice{Title: "Failed to schedule event. Please try again.", Error: true})
	}
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	c := schema.CandidateFromForm(r.PostForm)

	_, err := s.svc.Edit(r.Context(), id, c)
	var verrs schema.Errors
	switch {
	case err == nil:
		redirectWith(w, r, notice{Title: "Event updated successfully"})
	case errors.Is(err, events.ErrNoChanges):
		redirectWith(w, r, notice{Title: "No changes to save"})
	case errors.Is(err, events.ErrNotCached):
		redirectWith(w, r, notice{Title: "Event not found", Error: true})
	case errors.As(err, &verrs):
		s.render(w, http.StatusUnprocessableEntity, s.formFromCandidate(c, verrs, id), nil)
	default:
		appLog.Error("update failed", err, "id", id)
		redirectWith(w, r, notice{Title: "Failed to update event. Please try again.", Error: true})
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.svc.Delete(r.Context(), id)
	switch {
	case err == nil:
		redirectWith(w, r, notice{Title: "Event deleted", Body: "Your event has been deleted."})
	case errors.Is(err, events.ErrNotCached):
		redirectWith(w, r, notice{Title: "Event not found", Error: true})
	default:
		appLog.Error("delete failed", err, "id", id)
		redirectWith(w, r, notice{Title: "Error", Body: "There was an error deleting your event.", Error: true})
	}
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.FetchNext(r.Context()); err != nil {
		appLog.Error("fetch next page failed", err)
		redirectWith(w, r, notice{Title: "Failed to load more events.", Error: true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, status int, form formView, n *notice) {
	snap := s.svc.Snapshot()
	now := s.now()

	rows := make([]eventRow, 0, snap.Count())
	for _, ev := range snap.Events() {
		rows = append(rows, s.row(ev, now))
	}

	mutations := make(map[string]events.Status, len(snap.Mutations))
	for k, st := range snap.Mutations {
		mutations[string(k)] = st
	}

	data := pageData{
		Form:      form,
		Events:    rows,
		Shown:     snap.Count(),
		Total:     snap.Total,
		HasMore:   snap.HasMore,
		Loaded:    snap.Loaded,
		Notice:    n,
		Mutations: mutations,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		appLog.Error("render failed", err)
	}
}

func (s *Server) row(ev model.Event, now time.Time) eventRow {
	row := eventRow{
		ID:        ev.ID,
		Name:      ev.Name,
		Start:     ev.StartTime.In(s.loc).Format("Mon Jan 2 2006, 15:04"),
		Duration:  ev.Duration,
		Recurring: ev.IsRecurring,
	}
	if ev.IsRecurring {
		names := make([]string, 0, len(ev.RecurringDays))
		for _, d := range ev.RecurringDays {
			if d >= 0 && d <= 6 {
				names = append(names, dayLabels[d])
			}
		}
		row.Days = strings.Join(names, ", ")
	}
	if next, ok := ics.NextOccurrence(ev, now, s.loc); ok {
		row.Next = next.Format("Mon Jan 2, 15:04")
	}
	return row
}

func (s *Server) emptyForm() formView {
	return formView{
		Action: "/events",
		Days:   dayOptions(nil),
	}
}

// formFromCandidate renders c back into the form, keeping what the user typed
// when it cannot be parsed.
func (s *Server) formFromCandidate(c schema.Candidate, verrs schema.Errors, editID string) formView {
	f := formView{
		Action:      "/events",
		EditID:      editID,
		Name:        c.Name,
		StartTime:   c.StartTime,
		IsRecurring: c.IsRecurring,
		Days:        dayOptions(c.RecurringDays),
	}
	if editID != "" {
		f.Action = "/events/" + editID
	}
	if t, err := schema.ParseInstant(c.StartTime, s.loc); err == nil {
		f.StartTime, f.StartStep = inputValue(t.In(s.loc))
	}
	if !math.IsNaN(c.Duration) {
		f.Duration = strconv.FormatFloat(c.Duration, 'f', -1, 64)
	}
	if len(verrs) > 0 {
		f.Errors = verrs.ByField()
	}
	return f
}

// inputValue renders t for a datetime-local input without losing precision,
// so that resubmitting an untouched form does not change start_time. step is
// empty for whole minutes.
func inputValue(t time.Time) (value, step string) {
	switch {
	case t.Nanosecond() != 0:
		return t.Format(inputLayoutNanos), "any"
	case t.Second() != 0:
		return t.Format(inputLayoutSeconds), "1"
	default:
		return t.Format(inputLayout), ""
	}
}

func dayOptions(checked []int) []dayOption {
	out := make([]dayOption, 7)
	for i := range out {
		out[i] = dayOption{Value: i, Label: dayLabels[i]}
	}
	for _, d := range checked {
		if d >= 0 && d <= 6 {
			out[d].Checked = true
		}
	}
	return out
}
