package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/artwork-browser/pkg/artwork"
	"github.com/Sternrassler/artwork-browser/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InvalidRowsMessage is reported to the viewer for rejected row counts.
const InvalidRowsMessage = "Invalid number of rows!"

// Fetcher loads one page of artworks. *client.Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, page, rows int) (*artwork.Page, error)
}

// Notifier shows a message to the viewer.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) {
	f(message)
}

// SelectionPolicy decides what happens to selected rows when a new page lands.
type SelectionPolicy string

const (
	// SelectionPerPage drops the selection whenever new records are shown.
	SelectionPerPage SelectionPolicy = "per_page"

	// SelectionRetain keeps selected records across pages, keyed by ID.
	SelectionRetain SelectionPolicy = "retain"
)

// ParseSelectionPolicy validates a policy name. Empty means SelectionPerPage.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch SelectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case SelectionPerPage, "":
		return SelectionPerPage, nil
	case SelectionRetain:
		return SelectionRetain, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q (want %q or %q)", s, SelectionPerPage, SelectionRetain)
	}
}

// Options configures a Controller.
type Options struct {
	// DefaultRows is the initial rows-per-page count and the value used for blank input.
	DefaultRows int

	// GuardStale discards fetch results overtaken by a newer fetch.
	// When false, whichever fetch finishes last wins.
	GuardStale bool

	// Selection is the selection retention policy.
	Selection SelectionPolicy

	// Notifier receives viewer-facing messages. Nil discards them.
	Notifier Notifier

	// Logger is the controller's logger.
	Logger zerolog.Logger
}

// DefaultOptions returns guarded, per-page options with the global logger.
func DefaultOptions() Options {
	return Options{
		DefaultRows: pagination.DefaultRows,
		GuardStale:  true,
		Selection:   SelectionPerPage,
		Logger:      log.Logger,
	}
}
