package pagination

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultRows is the rows-per-page count used before the viewer picks one.
const DefaultRows = 10

// MaxPageIndex is the largest zero-based page index the paginator may send.
const MaxPageIndex = math.MaxInt32 - 1

// ErrInvalidRowCount is returned when row-count input is not a positive integer.
var ErrInvalidRowCount = errors.New("invalid number of rows")

// State is the pagination state of the table.
type State struct {
	// Page is the 1-based page number.
	Page int `json:"page"`

	// Rows is the rows-per-page count.
	Rows int `json:"rows"`

	// Total is the record count reported by the catalog.
	Total int `json:"total"`
}

// New returns the state for page 1 with the given rows-per-page count.
// Non-positive counts fall back to DefaultRows.
func New(rows int) State {
	if rows < 1 {
		rows = DefaultRows
	}
	return State{Page: 1, Rows: rows}
}

// WithPage returns a copy of s on the given page.
func (s State) WithPage(page int) State {
	s.Page = page
	return s
}

// WithRows returns a copy of s with a new rows-per-page count. The page is kept.
func (s State) WithRows(rows int) State {
	s.Rows = rows
	return s
}

// WithTotal returns a copy of s with a new total record count.
func (s State) WithTotal(total int) State {
	s.Total = total
	return s
}

// First returns the zero-based offset of the first row on the current page.
// Offsets past math.MaxInt saturate.
func (s State) First() int {
	if s.Page < 1 || s.Rows < 1 {
		return 0
	}
	if s.Page-1 > math.MaxInt/s.Rows {
		return math.MaxInt
	}
	return (s.Page - 1) * s.Rows
}

// Index returns the zero-based page index the table widget works with.
func (s State) Index() int {
	return s.Page - 1
}

// TotalPages returns ceil(Total/Rows).
func (s State) TotalPages() int {
	if s.Rows < 1 || s.Total <= 0 {
		return 0
	}
	pages := s.Total / s.Rows
	if s.Total%s.Rows != 0 {
		pages++
	}
	return pages
}

// InRange reports whether the current page holds any rows.
func (s State) InRange() bool {
	return s.Page <= s.TotalPages()
}

// HasPrev reports whether a previous page exists.
func (s State) HasPrev() bool {
	return s.Page > 1
}

// HasNext reports whether a following page exists.
func (s State) HasNext() bool {
	return s.Page < s.TotalPages()
}

// PageEvent is the page-change notification emitted by the table widget.
type PageEvent struct {
	// Page is the zero-based page index, nil when the widget omits it.
	Page *int `json:"page,omitempty"`

	// First is the zero-based offset of the first requested row.
	First int `json:"first"`

	// Rows is the page size the widget is showing.
	Rows int `json:"rows"`
}

// PageNumber converts the event to a 1-based page number.
// A missing or negative index maps to page 1; indexes past MaxPageIndex
// are clamped to it.
func (e PageEvent) PageNumber() int {
	idx := 0
	if e.Page != nil && *e.Page > 0 {
		idx = min(*e.Page, MaxPageIndex)
	}
	return idx + 1
}

// ParseRowCount parses viewer input for the rows-per-page control.
// Blank input yields fallback. Anything that is not a positive integer
// returns ErrInvalidRowCount.
func ParseRowCount(input string, fallback int) (int, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fallback, nil
	}

	rows, err := strconv.Atoi(trimmed)
	if err != nil || rows <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRowCount, input)
	}

	return rows, nil
}

// Link is one entry of the paginator's page list.
type Link struct {
	// Number is the 1-based page number, 0 for a gap.
	Number int

	// Index is the zero-based page index sent back in page events.
	Index int

	// Active marks the current page.
	Active bool

	// Dots marks a gap between non-adjacent page numbers.
	Dots bool
}

// Links returns the paginator entries: the first and last page plus window
// pages on either side of the current one, with gaps collapsed into dots.
func (s State) Links(window int) []Link {
	total := s.TotalPages()
	if total == 0 {
		return nil
	}
	if window < 0 {
		window = 0
	}

	lo := max(s.Page-window, 1)
	hi := min(s.Page+window, total)

	numbers := make([]int, 0, hi-lo+3)
	numbers = append(numbers, 1)
	for n := lo; n <= hi; n++ {
		if n > 1 && n < total {
			numbers = append(numbers, n)
		}
	}
	if total > 1 {
		numbers = append(numbers, total)
	}

	links := make([]Link, 0, len(numbers)+2)
	prev := 0
	for _, n := range numbers {
		if prev != 0 && n-prev > 1 {
			links = append(links, Link{Dots: true})
		}
		links = append(links, Link{Number: n, Index: n - 1, Active: n == s.Page})
		prev = n
	}

	return links
}
