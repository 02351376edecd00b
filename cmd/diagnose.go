// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Detect and analyze malformed messages and errors",
	Long: `Track message errors, malformed fragments, and anomalous payloads with
statistics.

This command validates each fragment and completed message and detects:
  - Malformed fragments (bad markers, length mismatches, oversize packets)
  - CRC errors and truncated terminal fragments
  - Anomalous payloads (missing terminators, non-printable identity text)
  - Statistics and trends (message rate, error rate)

By default, only errors are displayed. Use --show-all to display valid
messages too. Statistics summaries print at configurable intervals.`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
	diagnoseCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	diagnoseCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	defer transport.Close()

	fmt.Printf("Scalascope - Diagnose Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := geni.NewStatistics()
	reasm := geni.NewReassembler(nil)
	reasm.Stats = stats

	fragTimer := time.NewTimer(geni.DefaultFragmentTimeout)
	if !fragTimer.Stop() {
		<-fragTimer.C
	}
	defer fragTimer.Stop()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case pkt, ok := <-transport.Notifications():
			if !ok {
				log.Printf("Connection closed")
				return nil
			}

			// Fragment-level checks run before reassembly so oversize and
			// length problems are attributed to the packet that caused them.
			for _, verr := range geni.ValidateFragment(pkt) {
				printAnomaly("FRAGMENT", &verr)
			}

			msg, err := reasm.Feed(pkt)
			if !fragTimer.Stop() {
				select {
				case <-fragTimer.C:
				default:
				}
			}
			if reasm.Collecting() {
				fragTimer.Reset(geni.DefaultFragmentTimeout)
			}

			if err != nil {
				printDecodeError(err)
				continue
			}
			if msg == nil {
				continue
			}

			if verrs := geni.ValidateMessage(msg); len(verrs) > 0 {
				printValidationErrors(msg, verrs)
			} else if showAll {
				fmt.Print(geni.FormatMessage(msg))
			}

		case <-fragTimer.C:
			if reasm.Expire() {
				timestamp := time.Now().Format("15:04:05.000")
				fmt.Printf("[%s] \033[1;31mREASSEMBLY TIMEOUT:\033[0m partial message dropped\n\n", timestamp)
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case <-transport.Done():
			log.Printf("Connection closed")
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> MESSAGE REJECTED <<<\n\n")
}

// printAnomaly prints one fragment-level anomaly
func printAnomaly(scope string, verr *geni.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33m%s ANOMALY:\033[0m %s\n", timestamp, scope, verr.Message)
	for k, v := range verr.Details {
		fmt.Printf("    %s=%v\n", k, v)
	}
	fmt.Println()
}

// printValidationErrors prints validation errors for a completed message
func printValidationErrors(msg *geni.Message, errors []geni.ValidationError) {
	timestamp := msg.Timestamp().Format("15:04:05.000")
	subtype := geni.FormatSubtype(msg.Group(), msg.Field())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (%d fragments)\n",
		timestamp, subtype, msg.Fragments())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, verr := range errors {
		switch verr.Type {
		case geni.AnomalyMissingTerminator:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, verr.Message)
			if length, ok := verr.Details["length"].(int); ok {
				fmt.Printf("    payload length %d, no NUL found\n", length)
			}

		case geni.AnomalyNonPrintableText:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, verr.Message)

		case geni.AnomalyUnknownGroup:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, verr.Message)
			if field, ok := verr.Details["field"].(byte); ok {
				fmt.Printf("    field=0x%02X\n", field)
			}

		case geni.AnomalyEmptyPayload:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, verr.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, verr.Message)
		}
	}

	fmt.Printf("  Payload: %s", geni.HexDump(msg.Raw()))
	fmt.Printf("  >>> MESSAGE FLAGGED <<<\n\n")
}
