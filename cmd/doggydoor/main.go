package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDemo   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "doggydoor",
		Short: "Proximity lock for a doggy door, keyed to Find My beacons",
		Long: `doggydoor scans for Apple Find My beacons (AirTags) over Bluetooth LE,
estimates their distance from signal strength, and drives a HomeKit-exposed
door lock: the door unlocks when a beacon comes close and relocks when it
leaves, goes silent, or a safety timeout fires.

Scanning the radio requires sudo or CAP_NET_ADMIN. Use --demo to run
against fake beacons without Bluetooth hardware.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file (env vars override)")
	rootCmd.PersistentFlags().BoolVar(&flagDemo, "demo", false, "Use fake beacons instead of the radio")

	rootCmd.AddCommand(newRunCmd(), newScanCmd(), newCalibrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
