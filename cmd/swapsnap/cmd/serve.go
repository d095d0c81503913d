package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MilekOfficial/SwapSnap/api"
	"github.com/MilekOfficial/SwapSnap/api/validator"
	"github.com/MilekOfficial/SwapSnap/gallery"
	"github.com/MilekOfficial/SwapSnap/live"
	"github.com/MilekOfficial/SwapSnap/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("Could not close stores", "error", closeErr.Error())
			}
		}()

		catalog := a.catalog()
		ledger := gallery.TimedLedger{Ledger: a.ledger, Timeout: cfg.StorageTimeout}
		hub := live.NewHub(logger)

		handler := &api.API{
			Logger:  logger,
			Catalog: catalog,
			Ledger:  ledger,
			Rotation: &gallery.Selector{
				Catalog: catalog,
				Ledger:  ledger,
				State:   a.state,
				Blobs:   a.blobs,
				Logger:  logger,
				Timeout: cfg.StorageTimeout,
			},
			Images:   a.blobs,
			Uploader: a.pipeline(catalog),
			Sessions: &session.Manager{
				TTL:    cfg.SessionTTL,
				Secure: cfg.CookieSecure,
			},
			Val:            validator.New(),
			Feed:           hub,
			Live:           hub,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return hub.Run(ctx)
		})
		g.Go(func() error {
			return a.blobs.Watch(ctx, logger, func(string) {
				catalog.Invalidate()
			})
		})
		g.Go(func() error {
			logger.Info("Listening", "addr", cfg.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
