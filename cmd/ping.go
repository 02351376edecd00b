// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection with query round trips",
	Long: `Perform the protocol handshake and measure round-trip times using
model queries.

The handshake itself gets no reply, so each "ping" is a device-info query
the pump is known to answer. Sends are paced, so the interval between pings
never drops below the pump's pacing floor.

Exit codes:
  0 - All pings answered
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 3, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	device, connInfo, err := openDevice(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer device.Close()

	fmt.Printf("Scalascope - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	if err := device.Handshake(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Handshake failed: %v\n", err)
		os.Exit(2)
	}

	successCount := 0
	failCount := 0
	var minRTT, maxRTT, totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		resp, err := sendWithPacing(ctx, device, geni.NewModelQuery(),
			time.Duration(pingTimeout)*time.Second)
		if err != nil {
			if errors.Is(err, geni.ErrConnectionClosed) {
				fmt.Printf("CONNECTION LOST\n")
				failCount += pingCount - i + 1
				break
			}
			if errors.Is(err, geni.ErrRequestTimeout) {
				fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			} else {
				fmt.Printf("FAILED: %v\n", err)
			}
			failCount++
			continue
		}

		rtt := time.Since(startTime)
		fmt.Printf("reply %q, rtt=%v\n", resp.Value.Str, rtt.Round(time.Millisecond))

		successCount++
		totalRTT += rtt
		if minRTT == 0 || rtt < minRTT {
			minRTT = rtt
		}
		if rtt > maxRTT {
			maxRTT = rtt
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			minRTT.Round(time.Millisecond),
			(totalRTT / time.Duration(successCount)).Round(time.Millisecond),
			maxRTT.Round(time.Millisecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// sendWithPacing retries a single query that bounced off the pacing floor,
// sleeping until the device accepts it.
func sendWithPacing(ctx context.Context, d *geni.Device, spec geni.CommandSpec, timeout time.Duration) (*geni.Response, error) {
	for {
		resp, err := d.Send(ctx, spec, geni.KindString, timeout)
		var tooSoon *geni.TooSoonError
		if !errors.As(err, &tooSoon) {
			return resp, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Until(tooSoon.Earliest)):
		}
	}
}
