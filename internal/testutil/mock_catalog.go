// Package testutil provides a mock artwork catalog for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// ArtworksPath is the listing path served by MockCatalog.
const ArtworksPath = "/artworks"

// DefaultLimit is the page size the catalog uses when none is requested.
const DefaultLimit = 12

// CatalogRequest is one request received by the mock.
type CatalogRequest struct {
	Page        int
	Limit       int
	Conditional bool
	UserAgent   string
}

// MockCatalog is an httptest server serving a generated artwork listing.
//
// Artwork n (1-based across the whole listing) has id n and title
// "Artwork n". Every third artwork has a null inscription.
type MockCatalog struct {
	server *httptest.Server

	mu        sync.Mutex
	total     int
	delays    map[int]time.Duration
	failures  map[int]int
	bodies    map[int]string
	holds     map[int]chan struct{}
	requests  []CatalogRequest
	remaining int
	resetIn   int
}

// NewMockCatalog starts a mock catalog holding total artworks.
func NewMockCatalog(total int) *MockCatalog {
	m := &MockCatalog{
		total:     total,
		delays:    make(map[int]time.Duration),
		failures:  make(map[int]int),
		bodies:    make(map[int]string),
		holds:     make(map[int]chan struct{}),
		remaining: 60,
		resetIn:   60,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the server root, usable as the client base URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close releases held pages and shuts the server down.
func (m *MockCatalog) Close() {
	m.mu.Lock()
	for page, ch := range m.holds {
		close(ch)
		delete(m.holds, page)
	}
	m.mu.Unlock()
	m.server.Close()
}

// SetDelay delays every answer for page.
func (m *MockCatalog) SetDelay(page int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[page] = d
}

// SetFailure answers page with status instead of a listing. Zero clears it.
func (m *MockCatalog) SetFailure(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failures, page)
		return
	}
	m.failures[page] = status
}

// SetBody answers page with a raw 200 body.
func (m *MockCatalog) SetBody(page int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[page] = body
}

// SetQuota sets the X-RateLimit-Remaining and reset seconds sent on every answer.
func (m *MockCatalog) SetQuota(remaining, resetIn int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = remaining
	m.resetIn = resetIn
}

// Hold blocks answers for page until the returned release func is called.
// Requests already waiting are released together.
func (m *MockCatalog) Hold(page int) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	if prev, ok := m.holds[page]; ok {
		close(prev)
	}
	m.holds[page] = ch
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Close may already have released it.
		if m.holds[page] == ch {
			delete(m.holds, page)
			close(ch)
		}
	}
}

// Requests returns a copy of the received requests in arrival order.
func (m *MockCatalog) Requests() []CatalogRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CatalogRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of received requests.
func (m *MockCatalog) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockCatalog) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Conditional {
			n++
		}
	}
	return n
}

// Reset clears the request log.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// ArtworkID returns the id of the artwork at index (0-based) on page.
func ArtworkID(page, limit, index int) string {
	return strconv.Itoa((page-1)*limit + index + 1)
}

// PageETag returns the validator the mock sends for a page.
func PageETag(page, limit int) string {
	return fmt.Sprintf(`"p%d-l%d"`, page, limit)
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ArtworksPath {
		http.NotFound(w, r)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", DefaultLimit)
	etag := PageETag(page, limit)
	conditional := r.Header.Get("If-None-Match") != ""

	m.mu.Lock()
	m.requests = append(m.requests, CatalogRequest{
		Page:        page,
		Limit:       limit,
		Conditional: conditional,
		UserAgent:   r.Header.Get("User-Agent"),
	})
	delay := m.delays[page]
	failure := m.failures[page]
	body, customBody := m.bodies[page]
	hold := m.holds[page]
	remaining, resetIn := m.remaining, m.resetIn
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("X-RateLimit-Limit", "60")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if failure != 0 {
		http.Error(w, http.StatusText(failure), failure)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")

	if customBody {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
		return
	}

	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	json.NewEncoder(w).Encode(m.listing(page, limit))
}

func (m *MockCatalog) listing(page, limit int) map[string]any {
	m.mu.Lock()
	total := m.total
	m.mu.Unlock()

	data := make([]map[string]any, 0, limit)
	for i := 0; i < limit; i++ {
		n := (page-1)*limit + i + 1
		if n > total {
			break
		}
		var inscriptions any
		if n%3 != 0 {
			inscriptions = fmt.Sprintf("Signed %d", n)
		}
		data = append(data, map[string]any{
			"id":              n,
			"title":           fmt.Sprintf("Artwork %d", n),
			"place_of_origin": "Chicago",
			"artist_display":  fmt.Sprintf("Artist %d", n%7),
			"inscriptions":    inscriptions,
			"date_start":      1800 + n%200,
			"date_end":        1801 + n%200,
			"image_id":        fmt.Sprintf("img-%d", n),
		})
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return map[string]any{
		"pagination": map[string]any{
			"total":        total,
			"limit":        limit,
			"offset":       (page - 1) * limit,
			"total_pages":  totalPages,
			"current_page": page,
		},
		"data": data,
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}
