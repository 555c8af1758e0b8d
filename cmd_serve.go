package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pricehound/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the price tracker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := a.newTracker(store)
	if _, err := tracker.Resume(ctx); err != nil {
		a.logger.Warn("[tracker] Resume failed: %v", err)
	}
	tracker.Start()
	defer tracker.Stop()

	srv := api.New(a.cfg.ListenAddr, api.Deps{
		Titles:  a.resolver,
		Search:  a.aggregator,
		Tracker: tracker,
		Alerts:  a.transports,
		Checker: a.alerts,
		Logger:  a.logger,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
