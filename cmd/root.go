// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// BLE connection flags
	bleAddress string
	bleName    string

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Debug logging
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "scalascope",
	Short: "Grundfos SCALA BLE Protocol Analyzer",
	Long: `Scalascope - A CLI tool for talking to and analyzing Grundfos SCALA pumps over BLE.

Provides commands for device discovery, identity queries, raw message logging,
live monitoring, and protocol anomaly detection.

Connection modes:
  BLE:       --address F0:69:30:12:34:56 or --name grendal
  WebSocket: --url ws://host/path [--username user] (bridge relaying GATT packets)

For WebSocket authentication, the password is read from the SCALASCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "0.3.0",
}

func init() {
	// BLE connection flags
	rootCmd.PersistentFlags().StringVarP(&bleAddress, "address", "a", "", "BLE device address")
	rootCmd.PersistentFlags().StringVarP(&bleName, "name", "n", "", "BLE device name substring (default: any SCALA pump)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traffic to stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
