package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appLog "evsched/internal/log"
	"evsched/internal/listcache"
	"evsched/internal/model"
	"evsched/internal/schema"
)

var (
	// ErrNotCached is returned when an edit or delete targets an event that is
	// not in the local list.
	ErrNotCached = errors.New("event is not in the loaded list")

	// ErrNoChanges is returned by Edit when the submitted form equals the
	// cached event; no request is sent.
	ErrNoChanges = errors.New("no fields changed")
)

// Backend is the port to the event API.
type Backend interface {
	ListEvents(ctx context.Context, page, limit int) (model.Page, error)
	CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) error
	DeleteEvent(ctx context.Context, id string, patchIndex int) (model.Deletion, error)
}

// Service owns the cached list and the total count, and applies backend
// responses to them. Each patch runs under one lock so that concurrent
// handlers observe whole mutations only. Backend calls happen outside the
// lock.
type Service struct {
	backend   Backend
	validator *schema.Validator
	pageSize  int

	mu     sync.Mutex
	pages  listcache.Pages
	total  *listcache.TotalCount
	loaded bool

	tracker *Tracker
}

// Snapshot is a consistent copy of the list state for rendering.
type Snapshot struct {
	Pages     listcache.Pages
	Total     int
	Loaded    bool
	HasMore   bool
	Mutations map[Kind]Status
}

// Events returns the flattened list.
func (s Snapshot) Events() []model.Event { return listcache.Flatten(s.Pages) }

// Count returns how many events are cached.
func (s Snapshot) Count() int { return listcache.Len(s.Pages) }

// NewService wires a service. total is owned by the caller and shared with
// nobody else; pageSize is the limit sent with every list request.
func NewService(backend Backend, validator *schema.Validator, total *listcache.TotalCount, pageSize int) *Service {
	if total == nil {
		total = listcache.NewTotalCount()
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{
		backend:   backend,
		validator: validator,
		pageSize:  pageSize,
		total:     total,
		tracker:   NewTracker(),
	}
}

// PageSize is the configured list limit.
func (s *Service) PageSize() int { return s.pageSize }

// Load fetches the first page unless a list is already cached.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.FetchNext(ctx)
}

// FetchNext requests the next page and appends it. It is a no-op when the
// last page came back empty.
func (s *Service) FetchNext(ctx context.Context) error {
	s.mu.Lock()
	next, ok := listcache.NextPage(s.pages)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	page, err := s.backend.ListEvents(ctx, next, s.pageSize)
	if err != nil {
		return fmt.Errorf("fetch page %d: %w", next, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have appended this page meanwhile.
	if cur, _ := listcache.NextPage(s.pages); cur != next {
		return nil
	}
	s.pages = listcache.AppendPage(s.pages, page.Events)
	s.total.Set(page.Total)
	s.loaded = true

	appLog.Debug("page fetched", "page", next, "events", len(page.Events), "total", page.Total)
	return nil
}

// Create validates c and posts it. Validation failures are returned as
// schema.Errors and never reach the backend. The cache is only patched once
// a first page has been loaded.
func (s *Service) Create(ctx context.Context, c schema.Candidate) (model.Event, error) {
	in, verrs := s.validator.Validate(c)
	if verrs != nil {
		return model.Event{}, verrs
	}

	s.tracker.Begin(KindCreate)
	created, err := s.backend.CreateEvent(ctx, in)
	if err != nil {
		s.tracker.Fail(KindCreate, err)
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}

	// Before the first page arrives there is nothing to patch; the next Load
	// fetches the list and total including this event.
	s.mu.Lock()
	loaded := s.loaded
	known := s.total.Value()
	if loaded {
		s.pages = listcache.InsertAfterCreate(s.pages, created, known)
		s.total.Increase()
	}
	s.mu.Unlock()

	s.tracker.Succeed(KindCreate)
	appLog.Info("event created", "id", created.ID, "name", created.Name, "known_total", known, "cached", loaded)
	return created, nil
}

// Edit validates the full edited form, diffs it against the cached event and
// sends only the changed fields.
func (s *Service) Edit(ctx context.Context, id string, c schema.Candidate) (model.EventPatch, error) {
	original, ok := s.Lookup(id)
	if !ok {
		return model.EventPatch{}, ErrNotCached
	}

	in, verrs := s.validator.Validate(c)
	if verrs != nil {
		return model.EventPatch{}, verrs
	}

	patch := model.Diff(original, in)
	if patch.Empty() {
		return patch, ErrNoChanges
	}

	s.tracker.Begin(KindEdit)
	if err := s.backend.UpdateEvent(ctx, id, patch); err != nil {
		s.tracker.Fail(KindEdit, err)
		return model.EventPatch{}, fmt.Errorf("update event %s: %w", id, err)
	}

	s.mu.Lock()
	s.pages = listcache.PatchFields(s.pages, id, patch)
	s.mu.Unlock()

	s.tracker.Succeed(KindEdit)
	appLog.Info("event updated", "id", id)
	return patch, nil
}

// Delete removes id on the backend and regroups the cached pages, appending
// the backfill event the backend returns when more events exist than are
// cached.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, _, ok := listcache.Find(s.pages, id)
	patchIndex := listcache.PatchIndex(s.pages, s.total.Value())
	s.mu.Unlock()
	if !ok {
		return ErrNotCached
	}

	s.tracker.Begin(KindDelete)
	del, err := s.backend.DeleteEvent(ctx, id, patchIndex)
	if err != nil {
		s.tracker.Fail(KindDelete, err)
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	s.mu.Lock()
	s.total.Decrease()
	s.pages = listcache.RemoveAndPatch(s.pages, del.EventID, del.PatchEvent)
	s.mu.Unlock()

	s.tracker.Succeed(KindDelete)
	appLog.Info("event deleted", "id", del.EventID, "patch_index", patchIndex, "backfilled", del.PatchEvent != nil)
	return nil
}

// Resync refetches as many pages as are cached (at least one) and replaces
// the local state with the backend's view.
func (s *Service) Resync(ctx context.Context) error {
	s.mu.Lock()
	n := max(1, len(s.pages))
	s.mu.Unlock()

	var (
		pages listcache.Pages
		total int
	)
	for p := 1; p <= n; p++ {
		page, err := s.backend.ListEvents(ctx, p, s.pageSize)
		if err != nil {
			return fmt.Errorf("resync page %d: %w", p, err)
		}
		pages = listcache.AppendPage(pages, page.Events)
		total = page.Total
		if len(page.Events) < s.pageSize {
			break
		}
	}

	s.mu.Lock()
	s.pages = pages
	s.total.Set(total)
	s.loaded = true
	s.mu.Unlock()

	appLog.Info("list resynced", "pages", len(pages), "events", listcache.Len(pages), "total", total)
	return nil
}

// Lookup returns a copy of the cached event with the given id.
func (s *Service) Lookup(id string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, j, ok := listcache.Find(s.pages, id)
	if !ok {
		return model.Event{}, false
	}
	return s.pages[i][j].Clone(), true
}

// Snapshot copies the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pages:     s.pages.Clone(),
		Total:     s.total.Value(),
		Loaded:    s.loaded,
		HasMore:   listcache.HasMore(s.pages, s.total.Value()),
		Mutations: s.tracker.All(),
	}
}

// Status reports the phase of the latest mutation of kind k.
func (s *Service) Status(k Kind) Status { return s.tracker.Status(k) }
