// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/spf13/cobra"
)

var infoTimeout int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Read and display the pump's identity",
	Long: `Connect to the pump, perform the protocol handshake, and query the
device name, serial number, model, and firmware version.

Individual fields a pump refuses to answer are shown as unavailable; the
command still reports whatever it could read.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 30, "Overall timeout in seconds")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(infoTimeout)*time.Second)
	defer cancel()

	device, connInfo, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	fmt.Printf("Scalascope - Device Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	info, err := geni.ReadDeviceInfo(ctx, device)
	if err != nil && info == (geni.DeviceInfo{}) {
		return fmt.Errorf("device info read failed: %w", err)
	}

	printField := func(label, value string) {
		if value == "" {
			value = "(unavailable)"
		}
		fmt.Printf("  %-10s %s\n", label+":", value)
	}
	printField("Name", info.Name)
	printField("Model", info.Model)
	printField("Firmware", info.Firmware)
	printField("Serial", info.Serial())

	if err != nil {
		fmt.Printf("\nWarning: some queries failed: %v\n", err)
	}
	return nil
}
