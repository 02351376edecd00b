// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"
)

var (
	scanDuration int
	scanAll      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover SCALA pumps advertising nearby",
	Long: `Scan for BLE advertisements and list candidate pumps.

By default only devices whose advertised name contains "SCALA" are listed.
Use --all to list every named device, which helps when a pump has been
renamed through the Grundfos GO app.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanDuration, "duration", 10, "Scan duration in seconds")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "List all named devices, not just SCALA pumps")
}

func runScan(cmd *cobra.Command, args []string) error {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	fmt.Printf("Scalascope - Device Scan\n")
	fmt.Printf("Scanning for %d seconds...\n\n", scanDuration)

	seen := make(map[string]bool)
	timer := time.AfterFunc(time.Duration(scanDuration)*time.Second, func() {
		adapter.StopScan()
	})
	defer timer.Stop()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		if seen[addr] {
			return
		}
		name := result.LocalName()
		if name == "" {
			return
		}
		if !scanAll && !strings.Contains(strings.ToUpper(name), "SCALA") {
			return
		}
		seen[addr] = true
		fmt.Printf("  %-20s RSSI %4d  %s\n", addr, result.RSSI, name)
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(seen) == 0 {
		fmt.Println("No devices found.")
	} else {
		fmt.Printf("\n%d device(s) found.\n", len(seen))
	}
	return nil
}
