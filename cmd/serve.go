package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hubble-cli/internal/catalog"
	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/present"
	"github.com/sells-group/hubble-cli/internal/render"
	"github.com/sells-group/hubble-cli/internal/resilience"
	"github.com/sells-group/hubble-cli/internal/store"
)

var servePort int

// apiDeps is what the HTTP API needs. Nil members disable their routes'
// behavior and make them answer 503.
type apiDeps struct {
	Options  func(ctx context.Context, target string) (*catalog.Options, error)
	Run      func(ctx context.Context, q model.ObservationQuery, p render.Presenter) (*model.Run, error)
	Store    store.Store
	Breakers *resilience.Breakers
}

// healthResponse reports liveness and the archive breaker states.
type healthResponse struct {
	Status  string                             `json:"status"`
	Archive map[string]resilience.BreakerState `json:"archive"`
}

// runRequest is the body of POST /runs.
type runRequest struct {
	Target     string `json:"target"`
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
	Radius     string `json:"radius"`
}

// runResponse pairs a run with the render events it produced.
type runResponse struct {
	Run    *model.Run      `json:"run"`
	Events []present.Event `json:"events"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		deps := apiDeps{
			Options: env.Catalog.Options,
			Run: func(ctx context.Context, q model.ObservationQuery, p render.Presenter) (*model.Run, error) {
				return env.Pipeline(p).Run(ctx, q)
			},
			Store:    env.Store,
			Breakers: env.Breakers,
		}
		handler := buildRouter(deps, cfg.Server.CORSOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the API routes.
func buildRouter(deps apiDeps, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Archive: deps.Breakers.States()}
		for _, s := range resp.Archive {
			if s == resilience.BreakerOpen {
				resp.Status = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/options", func(w http.ResponseWriter, req *http.Request) {
		if deps.Options == nil {
			writeError(w, http.StatusServiceUnavailable, "archive is not configured")
			return
		}
		target := req.URL.Query().Get("target")
		if target == "" {
			writeError(w, http.StatusBadRequest, "target is required")
			return
		}
		opts, err := deps.Options(req.Context(), target)
		if err != nil {
			zap.L().Error("options lookup failed", zap.String("target", target), zap.Error(err))
			writeError(w, http.StatusBadGateway, "archive query failed")
			return
		}
		writeJSON(w, http.StatusOK, opts)
	})

	r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
		if deps.Run == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline is not configured")
			return
		}
		var body runRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Type == "" {
			body.Type = model.DataTypeSpectrum.String()
		}
		q, err := buildQuery(body.Target, body.Type, body.Instrument, body.Radius)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rec := present.NewRecorder()
		run, err := deps.Run(req.Context(), q, rec)
		if run == nil {
			zap.L().Error("run did not start", zap.String("target", q.Target), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "run did not start")
			return
		}
		// A failed run is still a valid answer: its error is in the body.
		writeJSON(w, http.StatusOK, runResponse{Run: run, Events: rec.Events()})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		if deps.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
			return
		}
		filter, err := parseRunFilter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		runs, err := deps.Store.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		if deps.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
			return
		}
		run, err := deps.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			zap.L().Error("get run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return r
}

// parseRunFilter reads the GET /runs query string.
func parseRunFilter(req *http.Request) (store.RunFilter, error) {
	q := req.URL.Query()
	filter := store.RunFilter{
		State:     model.RunState(q.Get("state")),
		Target:    q.Get("target"),
		ErrorKind: model.ErrorKind(q.Get("error_kind")),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.RunFilter{}, eris.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return store.RunFilter{}, eris.New("since must be a duration such as 24h")
		}
		filter.CreatedAfter = time.Now().Add(-d)
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
