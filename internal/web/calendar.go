package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"evsched/internal/ics"
	appLog "evsched/internal/log"
	"evsched/internal/schema"
)

const maxImportBytes = 1 << 20

// handleCalendar exports the loaded events as an ICS feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Load(r.Context()); err != nil {
		appLog.Error("calendar export: load failed", err)
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}
	body := ics.Export(s.svc.Snapshot().Events(), s.loc, s.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type agendaItem struct {
	EventID string    `json:"event_id"`
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type agendaResponse struct {
	Occurrences     []agendaItem `json:"occurrences"`
	RangeStart      time.Time    `json:"range_start"`
	RangeEnd        time.Time    `json:"range_end"`
	DisplayTimeZone string       `json:"display_timezone"`
}

// handleAgenda expands the loaded events into concrete occurrences.
//
// GET /agenda.json?days=7&backfill=0
//   - days:     how many days ahead to include (default 7)
//   - backfill: how many past days to include (default 0)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	if err := s.svc.Load(r.Context()); err != nil {
		appLog.Error("agenda: load failed", err)
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}

	now := s.now().In(s.loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	occ, err := ics.Occurrences(s.svc.Snapshot().Events(), rangeStart, rangeEnd, s.loc, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]agendaItem, 0, len(occ))
	for _, o := range occ {
		items = append(items, agendaItem{EventID: o.EventID, Name: o.Name, Start: o.Start, End: o.End})
	}
	writeJSON(w, http.StatusOK, agendaResponse{
		Occurrences:     items,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: s.loc.String(),
	})
}

// handleImport accepts an ICS upload (multipart field "file", or the raw
// body) and creates one event per VEVENT through the regular create path.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readUpload(w, r)
	if err != nil {
		redirectWith(w, r, notice{Title: "Import failed", Body: err.Error(), Error: true})
		return
	}

	candidates, err := ics.ParseImport(body, s.loc)
	if err != nil {
		appLog.Error("import: parse failed", err)
		redirectWith(w, r, notice{Title: "Import failed", Body: "The file is not a valid calendar.", Error: true})
		return
	}

	var created, rejected, failed int
	for _, c := range candidates {
		_, err := s.svc.Create(r.Context(), c)
		var verrs schema.Errors
		switch {
		case err == nil:
			created++
		case errors.As(err, &verrs):
			rejected++
			appLog.Warn("import: event rejected", "name", c.Name, "err", verrs.Error())
		default:
			failed++
			appLog.Error("import: create failed", err, "name", c.Name)
		}
	}

	appLog.Info("import finished", "created", created, "rejected", rejected, "failed", failed)
	n := notice{Title: fmt.Sprintf("Imported %d of %d events", created, len(candidates))}
	if rejected+failed > 0 {
		n.Body = fmt.Sprintf("%d invalid, %d failed.", rejected, failed)
		n.Error = created == 0
	}
	redirectWith(w, r, n)
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err == nil {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("no file uploaded")
		}
		defer f.Close()
		return io.ReadAll(f)
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return io.ReadAll(r.Body)
}
