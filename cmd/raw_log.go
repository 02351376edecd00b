// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/spf13/cobra"
)

var rawLogFragments bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded messages in human-readable format",
	Long: `Continuously reassemble and display pump messages as they arrive.

Each completed message is shown with timestamp, subtype, and decoded payload
data. Use --fragments to additionally dump every raw notification packet,
which is useful when diagnosing reassembly problems.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogFragments, "fragments", false, "Dump raw notification packets too")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	defer transport.Close()

	fmt.Printf("Scalascope - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	reasm := geni.NewReassembler(nil)
	reasm.Stats = geni.NewStatistics()

	fragTimer := time.NewTimer(geni.DefaultFragmentTimeout)
	if !fragTimer.Stop() {
		<-fragTimer.C
	}
	defer fragTimer.Stop()

	for {
		select {
		case pkt, ok := <-transport.Notifications():
			if !ok {
				log.Printf("Connection closed")
				return nil
			}
			if rawLogFragments {
				fmt.Print(geni.FormatFragment(pkt))
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
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if msg != nil {
				fmt.Print(geni.FormatMessage(msg))
			}

		case <-fragTimer.C:
			if reasm.Expire() {
				fmt.Printf("[ERROR] reassembly timed out, partial message dropped\n")
			}

		case <-transport.Done():
			log.Printf("Connection closed")
			return nil
		}
	}
}
