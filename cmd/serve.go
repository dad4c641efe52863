package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gedworks/archive-cli/internal/fetcher"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.WithoutCancel(ctx))
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(batchCtx context.Context, env *runtimeEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/taxonomy", func(w http.ResponseWriter, req *http.Request) {
		taxonomy, err := env.Store.Taxonomy(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, taxonomy)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := env.Store.ListRuns(req.Context(), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Post("/batches", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Paths []string `json:"paths"`
			Dest  string   `json:"dest"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		if len(body.Paths) == 0 {
			writeError(w, http.StatusBadRequest, eris.New("paths is required"))
			return
		}

		dest := body.Dest
		if dest == "" {
			dest = cfg.Archive.DestRoot
		}
		if dest == "" {
			writeError(w, http.StatusBadRequest, eris.New("dest is required"))
			return
		}

		files, err := fetcher.Collect(body.Paths)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		// The batch outlives the request; it is tied to the server's
		// lifetime instead.
		go func() {
			if _, err := env.Coord.Run(batchCtx, files, dest, nil); err != nil {
				zap.L().Error("batch failed", zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"files":  len(files),
			"dest":   dest,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
