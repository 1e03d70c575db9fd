// Package server exposes the dependency analyzer over a JSON HTTP API.
//
// Routes:
//
//	GET /api/crates/{id}/{version}/deps   analyzer result (treemap + graph)
//	GET /api/crates/{id}                  crate metadata and versions
//	GET /api/search?q=&page=&per_page=    crates.io search
//	GET /healthz                          liveness
//	GET /metrics                          Prometheus metrics, when configured
//
// Errors are answered as {"error": {"code": ..., "message": ...}} with the
// status given by errors.HTTPStatus.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/cratescope/pkg/deps"
	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

const shutdownTimeout = 10 * time.Second

// Catalog serves crate lookups that don't need a resolution.
type Catalog interface {
	FetchCrate(ctx context.Context, id string) (*crates.CrateResponse, error)
	Search(ctx context.Context, query string, page, perPage int) (*crates.SearchResponse, error)
}

var _ Catalog = (*crates.Client)(nil)

// Options configures a Server.
type Options struct {
	// FilterOptions is the default dependency filter. Query parameters dev,
	// build and optional override its switches; exclude adds patterns.
	FilterOptions deps.FilterOptions

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	Logger *log.Logger
}

// Server routes API requests to an Analyzer and a Catalog.
type Server struct {
	analyzer *deps.Analyzer
	catalog  Catalog
	opts     Options
	logger   *log.Logger
	router   chi.Router
}

// New creates a Server. The exclude patterns in opts are compiled per
// request, so invalid patterns surface as 400 responses.
func New(analyzer *deps.Analyzer, catalog Catalog, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		analyzer: analyzer,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/crates/{id}", s.handleCrate)
		r.Get("/crates/{id}/{version}/deps", s.handleDeps)
		r.Get("/search", s.handleSearch)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no route for %s", r.URL.Path))
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version := chi.URLParam(r, "version")

	fopts, err := s.filterOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filter, err := deps.NewFilter(fopts)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), id, version, filter)
	if err != nil {
		s.logger.Warn("analyze failed", "crate", id, "version", version, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCrate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateCrateID(id); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.catalog.FetchCrate(r.Context(), id)
	if err != nil {
		writeError(w, upstreamError(err, "crate %s", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "query parameter q is required"))
		return
	}
	page, err := intParam(q.Get("page"), 1, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	perPage, err := intParam(q.Get("per_page"), crates.DefaultPerPage, crates.MaxPerPage)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.catalog.Search(r.Context(), query, page, perPage)
	if err != nil {
		writeError(w, upstreamError(err, "search %q", query))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) filterOptions(r *http.Request) (deps.FilterOptions, error) {
	opts := s.opts.FilterOptions
	q := r.URL.Query()
	for name, dst := range map[string]*bool{"dev": &opts.Dev, "build": &opts.Build, "optional": &opts.Optional} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid %s parameter %q", name, v)
		}
		*dst = b
	}
	if excl := q["exclude"]; len(excl) > 0 {
		opts.Exclude = append(append([]string(nil), opts.Exclude...), excl...)
	}
	return opts, nil
}

// intParam parses a positive integer query parameter. limit <= 0 leaves it
// unbounded.
func intParam(v string, def, limit int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid integer parameter %q", v)
	}
	if limit > 0 && n > limit {
		return 0, errors.New(errors.ErrCodeInvalidInput, "parameter %q exceeds the maximum of %d", v, limit)
	}
	return n, nil
}

// upstreamError attaches a code to a catalog failure.
func upstreamError(err error, format string, args ...any) error {
	if errors.GetCode(err) != "" {
		return err
	}
	switch {
	case stderrors.Is(err, integrations.ErrNotFound):
		return errors.Wrap(errors.ErrCodePackageNotFound, err, format, args...)
	case stderrors.Is(err, integrations.ErrRateLimited):
		return errors.Wrap(errors.ErrCodeRateLimited, err, format, args...)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, err, format, args...)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, format, args...)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.HTTPStatus(code), errorBody{Error: errorDetail{
		Code:    code,
		Message: errors.UserMessage(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
