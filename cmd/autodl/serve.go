package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/datallboy/autodl/internal/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port      string
		autoStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(appCtx)

			if port != "" {
				appCtx.Config.Port = port
			}

			e := echo.New()
			api.RegisterRoutes(e, appCtx)

			srv := &http.Server{
				Addr:              ":" + appCtx.Config.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}

			sigCh, stop := notifyInterrupts()
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				appCtx.Logger.Info("API listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			if autoStart {
				if err := appCtx.Controller.StartProcessing(cmd.Context(), 0); err != nil {
					appCtx.Logger.Error("Failed to start batch: %v", err)
				}
			}

			select {
			case err := <-serveErr:
				if err != nil {
					return err
				}
			case <-sigCh:
			}

			appCtx.Logger.Info("Stopping API server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				appCtx.Logger.Warn("API shutdown: %v", err)
			}

			if !appCtx.Controller.Running() {
				return nil
			}

			// The interrupt that stopped the server counts as the first one
			appCtx.Logger.Warn("Finishing in-flight downloads. Press Ctrl+C again to force quit.")
			go appCtx.Controller.RequestGracefulShutdown()
			return superviseSecondInterrupt(appCtx, sigCh)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides port)")
	cmd.Flags().BoolVar(&autoStart, "start", false, "start processing the links file immediately")
	return cmd
}
