// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"context"
	"fmt"

	"github.com/Hydrolab/scalascope/pkg/geni"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive terminal UI for a connected pump",
	Long: `Connect to the pump and open a live terminal UI.

The monitor shows the pump's identity, running connection statistics, and a
log of every completed message. Ad-hoc device-info queries can be issued by
field byte from within the UI.

Keys:
  enter   query the field byte typed into the input (hex, e.g. 11)
  i       re-read the full device identity
  q       quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device, connInfo, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	m := initialMonitorModel(device, connInfo)
	p := tea.NewProgram(m)

	// Unsolicited responses and late completions feed the event log.
	go func() {
		for resp := range device.Events() {
			p.Send(pumpEventMsg{resp: resp})
		}
		p.Send(connClosedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// Messages passed into the monitor model.
type pumpEventMsg struct {
	resp *geni.Response
}
type connClosedMsg struct{}
type identityMsg struct {
	info geni.DeviceInfo
	err  error
}
type queryResultMsg struct {
	field byte
	resp  *geni.Response
	err   error
}
