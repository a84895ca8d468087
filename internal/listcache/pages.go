// Package listcache keeps a page-chunked copy of the server-side event list
// and patches it after mutations so that it keeps matching what a fresh fetch
// would return, without refetching.
//
// All functions are pure: they return new slices and never modify their
// arguments.
package listcache

import (
	"evsched/internal/model"
)

// Pages is the cached list in fetch order. Every page except possibly the
// last holds the page size that was observed on the first fetch.
type Pages [][]model.Event

// Clone deep-copies p.
func (p Pages) Clone() Pages {
	if p == nil {
		return nil
	}
	out := make(Pages, len(p))
	for i, page := range p {
		out[i] = clonePage(page)
	}
	return out
}

// Flatten returns all cached events in order.
func Flatten(p Pages) []model.Event {
	out := make([]model.Event, 0, Len(p))
	for _, page := range p {
		for _, ev := range page {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// Len counts cached events across all pages.
func Len(p Pages) int {
	n := 0
	for _, page := range p {
		n += len(page)
	}
	return n
}

// Find locates id, returning its page and position.
func Find(p Pages, id string) (page, pos int, ok bool) {
	for i, pg := range p {
		for j, ev := range pg {
			if ev.ID == id {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// HasMore reports whether the backend holds events not cached yet.
func HasMore(p Pages, total int) bool {
	return Len(p) < total
}

// NextPage returns the 1-based page number to request next. ok is false once
// the last fetched page came back empty.
func NextPage(p Pages) (page int, ok bool) {
	if len(p) == 0 {
		return 1, true
	}
	if len(p[len(p)-1]) == 0 {
		return 0, false
	}
	return len(p) + 1, true
}

// PatchIndex is the position the backend should backfill from after a
// delete: 0 when every event is already cached, otherwise the number of cached
// events (the first one beyond the local window).
func PatchIndex(p Pages, total int) int {
	n := Len(p)
	if n == total {
		return 0
	}
	return n
}

// AppendPage adds a freshly fetched page. No size correction happens here.
func AppendPage(p Pages, events []model.Event) Pages {
	out := p.Clone()
	return append(out, clonePage(events))
}

// InsertAfterCreate puts ev at the front of the list.
//
// knownTotal is the backend total before the create. When fewer events are
// cached than that, the last event of the first page is evicted first: its
// slot now belongs to a page that has not been fetched. When everything is
// cached the first page simply grows by one.
func InsertAfterCreate(p Pages, ev model.Event, knownTotal int) Pages {
	out := p.Clone()
	if len(out) == 0 {
		return Pages{{ev.Clone()}}
	}
	first := out[0]
	if Len(out) < knownTotal && len(first) > 0 {
		first = first[:len(first)-1]
	}
	out[0] = append([]model.Event{ev.Clone()}, first...)
	return out
}

// RemoveAndPatch drops id, appends patch when the backend supplied one, and
// regroups everything into pages of the size of the first page as it was
// before the call.
//
// An empty result keeps a single empty page. If the first page was empty the
// largest page length is used as the chunk size.
func RemoveAndPatch(p Pages, id string, patch *model.Event) Pages {
	if len(p) == 0 {
		return Pages{}
	}
	size := len(p[0])
	if size == 0 {
		for _, page := range p {
			size = max(size, len(page))
		}
	}

	all := make([]model.Event, 0, Len(p)+1)
	for _, ev := range Flatten(p) {
		if ev.ID != id {
			all = append(all, ev)
		}
	}
	if patch != nil {
		all = append(all, patch.Clone())
	}

	return regroup(all, size)
}

// PatchFields merges patch into the event with the given id. Positions and
// page sizes do not change.
func PatchFields(p Pages, id string, patch model.EventPatch) Pages {
	out := p.Clone()
	for i, page := range out {
		for j, ev := range page {
			if ev.ID == id {
				out[i][j] = ev.Apply(patch)
			}
		}
	}
	return out
}

func regroup(all []model.Event, size int) Pages {
	if len(all) == 0 || size <= 0 {
		return Pages{all}
	}
	out := make(Pages, 0, (len(all)+size-1)/size)
	for i := 0; i < len(all); i += size {
		end := min(i+size, len(all))
		out = append(out, all[i:end:end])
	}
	return out
}

func clonePage(page []model.Event) []model.Event {
	out := make([]model.Event, len(page))
	for i, ev := range page {
		out[i] = ev.Clone()
	}
	return out
}
