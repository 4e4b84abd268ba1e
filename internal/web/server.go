// Package web serves the artwork table as server-rendered HTML.
//
// Each viewer gets a session cookie bound to its own view controller.
// Controls are plain HTML forms: every POST changes the controller, waits
// briefly for the resulting fetch and redirects back to the table.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/artwork-browser/internal/view"
	"github.com/Sternrassler/artwork-browser/pkg/artwork"
	"github.com/Sternrassler/artwork-browser/pkg/logging"
	"github.com/Sternrassler/artwork-browser/pkg/metrics"
	"github.com/Sternrassler/artwork-browser/pkg/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// linkWindow is the number of page links shown on each side of the current page.
const linkWindow = 2

// Config holds web server settings.
type Config struct {
	// WaitForFetch bounds how long a POST waits for its fetch before
	// redirecting. The table then shows the loading indicator.
	WaitForFetch time.Duration

	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// DefaultConfig returns the default web settings.
func DefaultConfig() Config {
	return Config{
		WaitForFetch: 5 * time.Second,
	}
}

// Server renders the artwork table.
type Server struct {
	sessions *Sessions
	cfg      Config
	tmpl     *template.Template
	printer  *message.Printer
	logger   zerolog.Logger
}

// NewServer parses the embedded templates and returns a server.
func NewServer(sessions *Sessions, cfg Config) (*Server, error) {
	tmpl, err := template.New("root").Funcs(template.FuncMap{
		"text": artwork.Text,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		sessions: sessions,
		cfg:      cfg,
		tmpl:     tmpl,
		printer:  message.NewPrinter(language.English),
		logger:   logging.NewLogger("web"),
	}, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Handle("/metrics", metrics.Handler())

	r.With(s.newSession).Get("/", s.handleIndex)
	r.With(s.lookupSession).Get("/api/state", s.handleState)

	r.Group(func(r chi.Router) {
		r.Use(s.lookupSession, s.requireSession)

		r.Post("/page", s.handlePage)
		r.Post("/rows", s.handleRows)
		r.Post("/selection", s.handleSelection)
		r.Post("/reload", s.handleReload)
	})

	return r
}

// lookupSession attaches the viewer's live session, if the cookie names one.
func (s *Server) lookupSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookie); err == nil {
			if sess, ok := s.sessions.Get(c.Value); ok {
				r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireSession sends viewers without a live session back to the table,
// which starts one.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r) == nil {
			s.backToTable(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newSession attaches the viewer's session, creating one and loading its
// first page when the cookie is missing or unknown.
func (s *Server) newSession(next http.Handler) http.Handler {
	return s.lookupSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r) != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess := s.sessions.Create()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		s.await(r.Context(), sess.View.Load(r.Context()))

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// await waits for a fetch started by the request, at most WaitForFetch.
func (s *Server) await(ctx context.Context, done <-chan struct{}) {
	if s.cfg.WaitForFetch <= 0 {
		return
	}

	timer := time.NewTimer(s.cfg.WaitForFetch)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Server) backToTable(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r)
	data := s.pageData(sess.View.Snapshot(), sess.TakeFlash())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.tmpl.ExecuteTemplate(w, "index", data); err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID).Msg("Failed to render table")
	}
}

// handlePage takes the zero-based "page" form field. A missing field means the first page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r)

	var event pagination.PageEvent
	if raw := r.PostFormValue("page"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "page must be an integer", http.StatusBadRequest)
			return
		}
		if index > pagination.MaxPageIndex {
			http.Error(w, "page out of range", http.StatusBadRequest)
			return
		}
		event.Page = &index
	}

	snap := sess.View.Snapshot()
	event.Rows = snap.Rows
	event.First = (event.PageNumber() - 1) * snap.Rows

	s.await(r.Context(), sess.View.OnPage(r.Context(), event))
	s.backToTable(w, r)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r)

	done, err := sess.View.SubmitRowCount(r.Context(), r.PostFormValue("rows"))
	if err != nil && !errors.Is(err, pagination.ErrInvalidRowCount) {
		s.logger.Error().Err(err).Str("session", sess.ID).Msg("Row count change failed")
	}

	s.await(r.Context(), done)
	s.backToTable(w, r)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	if r.PostForm.Get("all") != "" {
		sess.View.SelectAll()
	} else {
		sess.View.SetSelection(r.PostForm["id"])
	}

	s.backToTable(w, r)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r)
	s.await(r.Context(), sess.View.Load(r.Context()))
	s.backToTable(w, r)
}

// stateResponse is the JSON form of a table snapshot.
type stateResponse struct {
	view.Snapshot
	First      int  `json:"first"`
	TotalPages int  `json:"total_pages"`
	InRange    bool `json:"in_range"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	// Without a session the blank table is reported; nothing is stored or fetched.
	snap := s.sessions.Blank()
	if sess := SessionFrom(r); sess != nil {
		snap = sess.View.Snapshot()
	}
	render.JSON(w, r, stateResponse{
		Snapshot:   snap,
		First:      snap.First(),
		TotalPages: snap.TotalPages(),
		InRange:    snap.InRange(),
	})
}

// pageData is the template input for the table page.
type pageData struct {
	view.Snapshot
	Flash   []string
	Links   []pagination.Link
	Showing string

	// AllOnPage is set when every record of the page is selected.
	AllOnPage bool

	// Zero-based page indexes for the paginator buttons.
	PrevIndex int
	NextIndex int
	LastIndex int
}

func (s *Server) pageData(snap view.Snapshot, flash []string) pageData {
	data := pageData{
		Snapshot: snap,
		Flash:    flash,
		Links:    snap.Links(linkWindow),

		PrevIndex: max(snap.Index()-1, 0),
		NextIndex: snap.Index() + 1,
		LastIndex: max(snap.TotalPages()-1, 0),
	}

	if n := len(snap.Records); n > 0 {
		from := snap.First() + 1
		data.Showing = s.printer.Sprintf("Showing %d to %d of %d entries", from, from+n-1, snap.Total)
		data.AllOnPage = true
		for _, rec := range snap.Records {
			if !snap.Selected(rec.ID) {
				data.AllOnPage = false
				break
			}
		}
	} else {
		data.Showing = s.printer.Sprintf("No entries on page %d of %d", snap.Page, snap.TotalPages())
	}

	return data
}
