package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricehound/services"
)

var trackFlags services.TrackRequest

var trackCmd = &cobra.Command{
	Use:   "track <url>",
	Short: "Track the price of a product page and alert on drops",
	Long: `Reads the current price of the page, stores it and keeps polling on TRACK_INTERVAL until
interrupted. A price below the previous sample is sent to the subscriber's chat and email.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	f := trackCmd.Flags()
	f.StringVar(&trackFlags.SubscriberID, "user", "", "subscriber id (required)")
	f.StringVar(&trackFlags.ChatID, "chat", "", "Telegram chat id for alerts")
	f.StringVar(&trackFlags.Email, "email", "", "email address for alerts")
	f.StringVar(&trackFlags.DisplayName, "name", "", "name used in alerts")
	_ = trackCmd.MarkFlagRequired("user")
}

func runTrack(cmd *cobra.Command, args []string) error {
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

	req := trackFlags
	req.URL = args[0]
	sample, err := tracker.Register(ctx, req)
	switch {
	case err == nil:
		fmt.Fprintf(cmd.OutOrStdout(), "Tracking %q at %.2f, checking every %v\n", sample.Title, sample.Price, a.cfg.TrackInterval)
	case errors.Is(err, services.ErrAlreadyTracked):
		fmt.Fprintf(cmd.OutOrStdout(), "Already tracking %s, resumed\n", req.URL)
	default:
		return err
	}

	tracker.Start()
	<-ctx.Done()
	a.logger.Info("Shutting down tracker...")
	tracker.Stop()
	return nil
}

