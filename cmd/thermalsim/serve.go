package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/thermalsim/internal/api"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/sim/synthetic"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve counts, recorded runs and charts over HTTP",
		Long: `Serve exposes the digital-count table and the capture store:

  /api/counts              current table (?unit=K|C|F)
  /api/runs                recorded runs (?limit=N)
  /api/runs/{id}/frames    per-frame projections
  /charts/counts           bar chart of the table
  /charts/track/{id}       pixel track of a run
  /debug/                  tailsql console and database backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := a.counts(); err != nil {
				return err
			}
			store, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(store, cmd.ErrOrStderr())

			ref := synthetic.NewScene(nil)
			srv := api.NewServer(store, a.counts, a.cfg.GetTemperatureUnit())
			srv.ImageWidth, srv.ImageHeight = ref.Width, ref.Height
			mux := srv.ServeMux()
			if err := store.AttachAdminRoutes(mux); err != nil {
				return err
			}

			server := &http.Server{
				Addr:    listen,
				Handler: api.LoggingMiddleware(mux),
			}
			return serve(cmd.Context(), server)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "HTTP listen address")
	return cmd
}

// serve runs server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, server *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("listening on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}
