// Package view holds the state of one artwork table and the transitions
// that change it: page and row-count changes, fetch completion and selection.
//
// Every page or row-count change issues exactly one fetch. Fetches are
// never cancelled or retried. Each carries a sequence number so that, with
// GuardStale set, a result overtaken by a newer fetch is dropped.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/artwork-browser/pkg/artwork"
	"github.com/Sternrassler/artwork-browser/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	viewFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_view_fetches_total",
		Help: "Page fetches by outcome (applied, stale, failed)",
	}, []string{"outcome"})

	viewInvalidRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_view_invalid_rows_total",
		Help: "Row count inputs rejected as not a positive integer",
	})
)

// Fetch outcomes.
const (
	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomeFailed  = "failed"
)

// closed is returned when a transition does not start a fetch.
var closed = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Controller owns the view state of one table.
type Controller struct {
	fetcher Fetcher
	opts    Options
	logger  zerolog.Logger

	mu      sync.Mutex
	state   state
	seq     uint64
	pending int
	idle    chan struct{}
}

// New creates a controller on page 1 with opts.DefaultRows rows. No fetch
// is issued until Load is called.
func New(fetcher Fetcher, opts Options) *Controller {
	if opts.DefaultRows < 1 {
		opts.DefaultRows = pagination.DefaultRows
	}
	if opts.Selection == "" {
		opts.Selection = SelectionPerPage
	}

	return &Controller{
		fetcher: fetcher,
		opts:    opts,
		logger:  opts.Logger,
		state: state{
			pager: pagination.New(opts.DefaultRows),
		},
	}
}

// Load fetches the current page. The returned channel closes when the fetch completes.
func (c *Controller) Load(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx)
}

// OnPage handles a zero-based page event from the paginator and fetches
// the new page. An event for the current page does nothing.
func (c *Controller) OnPage(ctx context.Context, event pagination.PageEvent) <-chan struct{} {
	page := event.PageNumber()

	c.mu.Lock()
	defer c.mu.Unlock()

	if page == c.state.pager.Page {
		return closed
	}

	c.state.setPage(page)
	return c.fetchLocked(ctx)
}

// SetRows changes the rows-per-page count and fetches the current page
// again. The page number is kept even if it is now past the last page.
func (c *Controller) SetRows(ctx context.Context, rows int) (<-chan struct{}, error) {
	if rows < 1 {
		return closed, fmt.Errorf("%w: %d", pagination.ErrInvalidRowCount, rows)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rows == c.state.pager.Rows {
		return closed, nil
	}

	c.state.setRows(rows)
	return c.fetchLocked(ctx), nil
}

// SubmitRowCount applies viewer input from the row-count control. Blank
// input selects the default row count. Input that is not a positive
// integer returns pagination.ErrInvalidRowCount, leaves the state
// untouched and notifies the viewer once.
func (c *Controller) SubmitRowCount(ctx context.Context, input string) (<-chan struct{}, error) {
	rows, err := pagination.ParseRowCount(input, c.opts.DefaultRows)
	if err != nil {
		viewInvalidRowsTotal.Inc()
		c.logger.Warn().Str("input", input).Msg("Rejected row count")
		c.notify(InvalidRowsMessage)
		return closed, err
	}
	return c.SetRows(ctx, rows)
}

// SetSelection replaces the selected rows of the current page with ids.
// Selected records from other pages are kept; ids not on the page are ignored.
func (c *Controller) SetSelection(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.setSelection(c.state.pick(ids))
}

// SelectAll selects every record of the current page.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, len(c.state.records))
	for i, r := range c.state.records {
		ids[i] = r.ID
	}
	c.state.setSelection(c.state.pick(ids))
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options returns the controller options.
func (c *Controller) Options() Options {
	return c.opts
}

// fetchLocked starts a fetch for the current page and rows. c.mu must be held.
func (c *Controller) fetchLocked(ctx context.Context) <-chan struct{} {
	c.seq++
	seq := c.seq
	page, rows := c.state.pager.Page, c.state.pager.Rows

	c.state.setLoading(true)
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++

	c.logger.Debug().
		Uint64("seq", seq).
		Int("page", page).
		Int("rows", rows).
		Msg("Fetching page")

	// The fetch outlives the event that triggered it.
	fetchCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := c.fetcher.FetchPage(fetchCtx, page, rows)
		c.complete(seq, page, rows, result, err)
	}()

	return done
}

// complete applies a finished fetch.
func (c *Controller) complete(seq uint64, page, rows int, result *artwork.Page, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.release()

	if c.opts.GuardStale && seq != c.seq {
		viewFetchesTotal.WithLabelValues(outcomeStale).Inc()
		c.logger.Debug().
			Uint64("seq", seq).
			Uint64("latest", c.seq).
			Int("page", page).
			Msg("Dropped stale page")
		return
	}

	defer c.state.setLoading(false)

	if err == nil && result == nil {
		err = errors.New("fetcher returned no page")
	}
	if err != nil {
		viewFetchesTotal.WithLabelValues(outcomeFailed).Inc()
		c.logger.Error().
			Err(err).
			Uint64("seq", seq).
			Int("page", page).
			Int("rows", rows).
			Msg("Failed to fetch page, keeping previous records")
		return
	}

	records := result.Records
	if len(records) > rows {
		c.logger.Warn().
			Int("page", page).
			Int("rows", rows).
			Int("received", len(records)).
			Msg("Catalog returned more records than requested, truncating")
		records = records[:rows]
	}

	c.state.setRecords(records, max(result.Total, 0), c.opts.Selection)
	viewFetchesTotal.WithLabelValues(outcomeApplied).Inc()

	c.logger.Debug().
		Uint64("seq", seq).
		Int("page", page).
		Int("records", len(records)).
		Int("total", result.Total).
		Msg("Page applied")
}

// release marks one fetch finished. c.mu must be held.
func (c *Controller) release() {
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}

func (c *Controller) notify(message string) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(message)
	}
}
