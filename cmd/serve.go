package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/dataset"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve processed outputs over HTTP",
	Long:  "Read-only inspection server over the output directory: city list, per-city summary and neighborhoods.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := dataset.NewStore(cfg.Output.Dir)
		mux := newServeMux(store)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeMux builds the inspection routes over a dataset store.
func newServeMux(store *dataset.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /cities", func(w http.ResponseWriter, r *http.Request) {
		cities, err := store.ListCities()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if cities == nil {
			cities = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"cities": cities})
	})

	mux.HandleFunc("GET /cities/{slug}/summary", func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.ReadSummary(r.PathValue("slug"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("GET /cities/{slug}/neighborhoods", func(w http.ResponseWriter, r *http.Request) {
		ds, err := store.ReadDemand(r.PathValue("slug"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"neighborhoods": ds.Neighborhoods})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, dataset.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "city not processed"})
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
