package view

import (
	"slices"

	"github.com/Sternrassler/artwork-browser/pkg/artwork"
	"github.com/Sternrassler/artwork-browser/pkg/pagination"
)

// Snapshot is a copy of the view state. Changing it does not affect the controller.
type Snapshot struct {
	pagination.State

	// Records are the rows of the current page.
	Records []artwork.Record `json:"records"`

	// Selection lists the selected records in selection order.
	Selection []artwork.Record `json:"selection"`

	// Loading is set while a fetch is in flight.
	Loading bool `json:"loading"`
}

// Selected reports whether the record with id is selected.
func (s Snapshot) Selected(id string) bool {
	return slices.ContainsFunc(s.Selection, func(r artwork.Record) bool { return r.ID == id })
}

// state is the mutable view state. It is only changed through the set*
// transitions, always with the controller's mutex held.
type state struct {
	pager     pagination.State
	records   []artwork.Record
	selection []artwork.Record
	loading   bool
}

func (s *state) setPage(page int) {
	s.pager = s.pager.WithPage(page)
}

func (s *state) setRows(rows int) {
	s.pager = s.pager.WithRows(rows)
}

func (s *state) setLoading(loading bool) {
	s.loading = loading
}

// setRecords replaces the page contents. Records are never merged.
func (s *state) setRecords(records []artwork.Record, total int, policy SelectionPolicy) {
	s.records = artwork.CloneRecords(records)
	s.pager = s.pager.WithTotal(total)
	if policy != SelectionRetain {
		s.setSelection(nil)
	}
}

func (s *state) setSelection(selection []artwork.Record) {
	s.selection = selection
}

// pick resolves ids against the current records: the selection keeps
// entries from other pages and replaces those of the current page with ids,
// in ids order. Unknown and repeated ids are ignored.
func (s *state) pick(ids []string) []artwork.Record {
	onPage := make(map[string]artwork.Record, len(s.records))
	for _, r := range s.records {
		onPage[r.ID] = r
	}

	next := make([]artwork.Record, 0, len(s.selection)+len(ids))
	for _, r := range s.selection {
		if _, ok := onPage[r.ID]; !ok {
			next = append(next, r)
		}
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		r, ok := onPage[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, r.Clone())
	}

	return next
}

func (s *state) snapshot() Snapshot {
	selection := artwork.CloneRecords(s.selection)
	if selection == nil {
		selection = []artwork.Record{}
	}
	records := artwork.CloneRecords(s.records)
	if records == nil {
		records = []artwork.Record{}
	}
	return Snapshot{
		State:     s.pager,
		Records:   records,
		Selection: selection,
		Loading:   s.loading,
	}
}
