package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vjranagit/lkext/pkg/search"
	"github.com/vjranagit/lkext/pkg/storage"
	"github.com/vjranagit/lkext/pkg/types"
)

// Server implements the local HTTP query API
type Server struct {
	resolver *search.Resolver
	dirs     *storage.DirectoryCache
	addr     string
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server. dirs may be nil, in which case the
// scan, diff, entries and reports endpoints answer 503.
func NewServer(addr string, resolver *search.Resolver, dirs *storage.DirectoryCache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		resolver: resolver,
		dirs:     dirs,
		addr:     addr,
		logger:   logger,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/cache/stats", s.handleCacheStats)

		r.Group(func(r chi.Router) {
			r.Use(s.requireDirectoryCache)
			r.Post("/scan", s.handleScan)
			r.Get("/diff", s.handleDiff)
			r.Get("/entries/{ticid}", s.handleEntries)
			r.Get("/reports", s.handleReports)
		})
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	s.logger.Info("serving query API", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requireDirectoryCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.dirs == nil {
			http.Error(w, "Directory cache disabled", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleSearch resolves query parameters to matching files
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	res, err := s.resolver.Search(r.Context(), q)
	if err != nil {
		s.fail(w, "Search", err)
		return
	}
	paths := []string{}
	if res != nil {
		paths = res.Paths
	}
	writeJSON(w, map[string]any{"count": len(paths), "paths": paths})
}

// handleScan rescans the given root, or every searched root
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	roots := listParam(r, "root")
	if len(roots) == 0 {
		roots = s.resolver.Roots()
	}
	if len(roots) == 0 {
		http.Error(w, "Missing root parameter", http.StatusBadRequest)
		return
	}

	index, err := s.dirs.Scan(r.Context(), roots...)
	if err != nil {
		s.fail(w, "Scan", err)
		return
	}
	files := 0
	for _, paths := range index {
		files += len(paths)
	}
	writeJSON(w, map[string]any{"roots": roots, "objects": len(index), "files": files})
}

// handleDiff reports files added between the last two scans of a root
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")
	if root == "" {
		http.Error(w, "Missing root parameter", http.StatusBadRequest)
		return
	}
	updates, err := s.dirs.Diff(r.Context(), root)
	if err != nil {
		s.fail(w, "Diff", err)
		return
	}
	writeJSON(w, updates)
}

// handleEntries lists the recorded files of an object under a root,
// optionally filtered by author, sector and exp_time
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	ticid, err := strconv.ParseInt(chi.URLParam(r, "ticid"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ticid", http.StatusBadRequest)
		return
	}
	root := r.URL.Query().Get("root")
	if root == "" {
		http.Error(w, "Missing root parameter", http.StatusBadRequest)
		return
	}

	selectors := make(map[string]string)
	for _, label := range []string{storage.LabelAuthor, storage.LabelSector, storage.LabelExpTime} {
		if v := r.URL.Query().Get(label); v != "" {
			selectors[label] = v
		}
	}

	entries, ok, err := s.dirs.Find(r.Context(), root, ticid, selectors)
	if err != nil {
		s.fail(w, "Lookup", err)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("Root %s was never scanned", root), http.StatusNotFound)
		return
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	writeJSON(w, entries)
}

// handleReports replays the update report log
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.dirs.Reports(r.Context())
	if err != nil {
		s.fail(w, "Reports", err)
		return
	}
	if reports == nil {
		reports = []*types.UpdateReport{}
	}
	writeJSON(w, reports)
}

// handleCacheStats reports the search memo statistics
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := s.resolver.CacheStats()
	writeJSON(w, map[string]any{"search": stats, "hit_rate": stats.HitRate()})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "healthy",
	})
}

// fail maps validation errors to 400 and everything else to 500
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, types.ErrInvalidValue) || errors.Is(err, types.ErrInvalidType) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("request failed", "op", op, "err", err)
	}
	http.Error(w, fmt.Sprintf("%s failed: %v", op, err), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseQuery reads a search.Query from URL parameters. List parameters may
// be repeated or comma separated.
func parseQuery(r *http.Request) (search.Query, error) {
	var q search.Query
	values := r.URL.Query()

	ticid := values.Get("ticid")
	if ticid == "" {
		return q, errors.New("missing ticid parameter")
	}
	id, err := strconv.ParseInt(ticid, 10, 64)
	if err != nil {
		return q, fmt.Errorf("invalid ticid %q", ticid)
	}
	q.TICID = id
	q.Mission = values.Get("mission")
	q.Authors = listParam(r, "author")
	q.ExpTime = listParam(r, "exptime")
	q.Cadence = listParam(r, "cadence")

	if q.Sectors, err = intListParam(r, "sector"); err != nil {
		return q, err
	}
	if q.Quarters, err = intListParam(r, "quarter"); err != nil {
		return q, err
	}
	if q.Campaigns, err = intListParam(r, "campaign"); err != nil {
		return q, err
	}
	if limit := values.Get("limit"); limit != "" {
		if q.Limit, err = strconv.Atoi(limit); err != nil {
			return q, fmt.Errorf("invalid limit %q", limit)
		}
	}
	return q, nil
}

func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intListParam(r *http.Request, name string) ([]int, error) {
	var out []int
	for _, v := range listParam(r, name) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", name, v)
		}
		out = append(out, n)
	}
	return out, nil
}
