package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/engine"
	"github.com/peteski22/cryoflow/internal/plugins"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

type response struct {
	Status  string                `json:"status"`
	Error   string                `json:"error,omitempty"`
	Schemas map[string]pkg.Schema `json:"schemas,omitempty"`
	Plugins []engine.PluginInfo   `json:"plugins,omitempty"`
}

// Router returns the HTTP API.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  s.logger.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug}),
		NoColor: true,
	}))
	router.Use(middleware.Recoverer)
	router.Use(otelhttp.NewMiddleware("cryoflow.http", otelhttp.WithFilter(traced)))
	router.Use(s.instrument)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Status: "healthy"})
	})
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/plugins", s.handlePlugins)
		r.Post("/check", s.handleCheck)
		r.Post("/run", s.handleRun)
	})

	return router
}

// traced excludes health checks and metric scrapes from tracing.
func traced(r *http.Request) bool {
	return r.URL.Path != "/health" && r.URL.Path != "/metrics"
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	infos, err := s.runner.Plugins(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Plugins: infos})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.check(r.Context(), triggerHTTP)
	if err != nil {
		writeError(w, err, schemas)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Schemas: schemas})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.run(r.Context(), triggerHTTP); err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoProducers),
		errors.Is(err, engine.ErrNoConsumers),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, plugins.ErrModuleNotFound),
		errors.Is(err, plugins.ErrModuleLoad),
		errors.Is(err, plugins.ErrPluginClassNotFound),
		errors.Is(err, plugins.ErrPluginInstantiation),
		errors.Is(err, plugins.ErrPluginExecution):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error, schemas map[string]pkg.Schema) {
	writeJSON(w, statusFor(err), response{Status: "error", Error: err.Error(), Schemas: schemas})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
