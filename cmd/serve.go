package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elegant-foods/costing-cli/internal/model"
	"github.com/elegant-foods/costing-cli/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the estimation HTTP API",
	Long: `Starts an HTTP server exposing the pipeline: POST /api/estimate kicks
off a background run and returns immediately, GET /api/status reports the
last committed progress while the run advances, POST /api/parse turns free
menu text into structured items, and GET /api/quote exports the completed
job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("api server listening", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	env *pipelineEnv
}

func newRouter(env *pipelineEnv) http.Handler {
	s := &apiServer{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/estimate", s.handleEstimate)
		r.Get("/status", s.handleStatus)
		r.Post("/parse", s.handleParse)
		r.Get("/quote", s.handleQuote)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type estimateRequest struct {
	Items []model.MenuItem `json:"items"`
	Reset bool             `json:"reset"`
}

// handleEstimate accepts a menu and starts the run in the background. The
// 202 response carries the initial progress snapshot; clients poll
// /api/status for the rest.
func (s *apiServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 && !req.Reset {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}

	// Detached from the request context: the run must outlive the response.
	go func() {
		if _, err := s.env.Orchestrator.Start(context.Background(), req.Items, req.Reset); err != nil {
			if errors.Is(err, pipeline.ErrRunActive) {
				zap.L().Warn("estimate request ignored, run already active")
				return
			}
			zap.L().Error("background estimation run failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"total_items": len(req.Items),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.env.Orchestrator.Status(r.Context(), cfg.Pipeline.LatestResults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job status")
		return
	}
	if progress == nil {
		writeError(w, http.StatusNotFound, "no job found")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type parseRequest struct {
	Text string `json:"text"`
}

func (s *apiServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	items, err := s.env.Agent.ParseMenu(r.Context(), req.Text)
	if err != nil {
		zap.L().Error("menu parse failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "menu parse failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *apiServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.env.Orchestrator.Quote(r.Context(), r.URL.Query().Get("event"))
	if err != nil {
		writeError(w, http.StatusConflict, "no completed job to quote")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
