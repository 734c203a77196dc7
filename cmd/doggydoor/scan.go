package main

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"doggydoor/internal/beacon"
	"doggydoor/internal/config"
	"doggydoor/internal/scanui"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Show visible Find My beacons with live RSSI and distance",
		RunE:  runScan,
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The TUI owns the terminal; logs would corrupt it.
	source, runSource := newSource(slog.New(slog.DiscardHandler))
	go func() { _ = runSource(ctx) }()

	tracker := beacon.NewTracker(cfg.Scanner.SmoothingAlpha)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-source.Samples():
				tracker.Observe(s)
			}
		}
	}()

	model := scanui.New(tracker, newEstimator(cfg), source, cfg.Scanner.SilenceWindow.Std())
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
