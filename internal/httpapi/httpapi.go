// Package httpapi serves a built schema over HTTP, along with the GraphQL
// playground, the SDL, store statistics and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/dialect/sql"
	"github.com/syssam/gqlmap/privacy"
)

// Viewer headers.
const (
	HeaderViewerID    = "X-Viewer-ID"
	HeaderViewerRoles = "X-Viewer-Roles"
	HeaderTenantID    = "X-Tenant-ID"
)

type current struct {
	graphql *handler.Handler
	sdl     string
}

// Server serves the current schema. The schema can be swapped while
// requests are in flight.
type Server struct {
	cur        atomic.Pointer[current]
	mux        *http.ServeMux
	log        *zap.Logger
	stats      *sql.QueryStats
	playground bool
	pretty     bool

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithStats exposes the statistics of a stats driver on /stats.
func WithStats(stats *sql.QueryStats) Option {
	return func(s *Server) { s.stats = stats }
}

// WithPlayground serves the GraphQL playground on /.
func WithPlayground(enabled bool) Option {
	return func(s *Server) { s.playground = enabled }
}

// WithPretty indents GraphQL responses.
func WithPretty(enabled bool) Option {
	return func(s *Server) { s.pretty = enabled }
}

// New returns a server registering its collectors with reg and exposing
// reg on /metrics.
func New(reg *prometheus.Registry, opts ...Option) (*Server, error) {
	s := &Server{
		mux: http.NewServeMux(),
		log: zap.NewNop(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gqlmap",
			Subsystem: "graphql",
			Name:      "requests_total",
			Help:      "GraphQL requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gqlmap",
			Subsystem: "graphql",
			Name:      "request_duration_seconds",
			Help:      "Duration of GraphQL requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, c := range []prometheus.Collector{s.requests, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	s.mux.HandleFunc("/graphql", s.serveGraphQL)
	s.mux.HandleFunc("/schema.graphql", s.serveSDL)
	s.mux.HandleFunc("/stats", s.serveStats)
	s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if s.playground {
		s.mux.Handle("/", playground.Handler("gqlmap", "/graphql"))
	}
	return s, nil
}

// SetSchema replaces the served schema and its SDL.
func (s *Server) SetSchema(schema graphql.Schema, sdl string) {
	h := handler.New(&handler.Config{
		Schema:           &schema,
		Pretty:           s.pretty,
		ResultCallbackFn: s.observe,
	})
	s.cur.Store(&current{graphql: h, sdl: sdl})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type startKey struct{}

func (s *Server) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	cur := s.cur.Load()
	if cur == nil {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		return
	}
	ctx := context.WithValue(viewerContext(r), startKey{}, time.Now())
	cur.graphql.ServeHTTP(w, r.WithContext(ctx))
}

// observe records the outcome and duration of an executed request.
func (s *Server) observe(ctx context.Context, params *graphql.Params, res *graphql.Result, _ []byte) {
	op := params.OperationName
	if op == "" {
		op = "anonymous"
	}
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	outcome := "ok"
	if res.HasErrors() {
		outcome = "error"
		s.log.Debug("graphql errors", zap.String("operation", op), zap.Any("errors", res.Errors))
	}
	s.requests.WithLabelValues(outcome).Inc()
}

func (s *Server) serveSDL(w http.ResponseWriter, _ *http.Request) {
	cur := s.cur.Load()
	if cur == nil {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(cur.sdl))
}

func (s *Server) serveStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		http.NotFound(w, nil)
		return
	}
	snap := s.stats.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queries":     snap.TotalQueries,
		"execs":       snap.TotalExecs,
		"slow":        snap.SlowQueries,
		"errors":      snap.Errors,
		"avgDuration": snap.AvgQueryDuration().String(),
	})
}

// viewerContext attaches the viewer named by the request headers, if any.
func viewerContext(r *http.Request) context.Context {
	ctx := r.Context()
	id := r.Header.Get(HeaderViewerID)
	if id == "" {
		return ctx
	}
	v := &privacy.SimpleViewer{UserID: id, TenantID: r.Header.Get(HeaderTenantID)}
	for _, role := range strings.Split(r.Header.Get(HeaderViewerRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			v.Roles = append(v.Roles, role)
		}
	}
	return privacy.WithViewer(ctx, v)
}
