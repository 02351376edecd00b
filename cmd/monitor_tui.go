// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for informational entries
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	device   *geni.Device
	connInfo string

	info    geni.DeviceInfo
	hasInfo bool

	stats geni.Statistics

	eventLog      []monitorLogEntry
	maxLogEntries int

	fieldInput textinput.Model
	querying   bool

	width      int
	height     int
	connClosed bool
	quitting   bool
}

type monitorTickMsg time.Time

func initialMonitorModel(device *geni.Device, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "field byte (hex)"
	ti.CharLimit = 2
	ti.Width = 18
	ti.Focus()

	return monitorModel{
		device:        device,
		connInfo:      connInfo,
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		fieldInput:    ti,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		readIdentityCmd(m.device),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

// readIdentityCmd performs the handshake and identity walk off the UI
// goroutine.
func readIdentityCmd(device *geni.Device) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		info, err := geni.ReadDeviceInfo(ctx, device)
		return identityMsg{info: info, err: err}
	}
}

// queryFieldCmd issues one device-info query for an arbitrary field byte.
func queryFieldCmd(device *geni.Device, field byte) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := sendWithPacing(ctx, device, geni.NewDeviceInfoQuery(field), 0)
		return queryResultMsg{field: field, resp: resp, err: err}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "i":
			if !m.querying && !m.connClosed {
				m.querying = true
				m.addLogEntry("re-reading device identity", false)
				return m, readIdentityCmd(m.device)
			}
			return m, nil

		case "enter":
			if m.querying || m.connClosed {
				return m, nil
			}
			text := strings.TrimSpace(m.fieldInput.Value())
			if text == "" {
				return m, nil
			}
			field, err := strconv.ParseUint(text, 16, 8)
			if err != nil {
				m.addLogEntry(fmt.Sprintf("invalid field byte %q", text), true)
				m.fieldInput.SetValue("")
				return m, nil
			}
			m.querying = true
			m.fieldInput.SetValue("")
			m.addLogEntry(fmt.Sprintf("querying field 0x%02X", byte(field)), false)
			return m, queryFieldCmd(m.device, byte(field))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats = m.device.Stats()
		return m, monitorTickCmd()

	case identityMsg:
		m.querying = false
		m.info = msg.info
		m.hasInfo = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("identity read incomplete: %v", msg.err), true)
		} else {
			m.addLogEntry("device identity read", false)
		}

	case queryResultMsg:
		m.querying = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("field 0x%02X: %v", msg.field, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("field 0x%02X: %s", msg.field, msg.resp.Value.String()), false)
			m.info.Absorb(msg.resp)
		}

	case pumpEventMsg:
		subtype := geni.FormatSubtype(msg.resp.Group(), msg.resp.Field())
		m.addLogEntry(fmt.Sprintf("unsolicited %s (%d bytes)", subtype, len(msg.resp.Raw)), false)

	case connClosedMsg:
		m.connClosed = true
		m.addLogEntry("connection closed", true)
	}

	var cmd tea.Cmd
	m.fieldInput, cmd = m.fieldInput.Update(msg)
	return m, cmd
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SCALASCOPE - PUMP MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | 'i' re-read identity, 'enter' query field, 'q' quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.connClosed {
		s.WriteString(errorStyle.Render("✗ Connection closed"))
		s.WriteString("\n\n")
	}

	// Identity panel
	identity := strings.Builder{}
	if !m.hasInfo {
		identity.WriteString(warningStyle.Render("⏳ Reading device identity..."))
	} else {
		field := func(label, value string) {
			if value == "" {
				value = "(unavailable)"
			}
			identity.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render(fmt.Sprintf("%-10s", label+":")),
				valueStyle.Render(value)))
		}
		field("Name", m.info.Name)
		field("Model", m.info.Model)
		field("Firmware", m.info.Firmware)
		field("Serial", m.info.Serial())
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(identity.String(), "\n")))
	s.WriteString("\n\n")

	// Statistics panel
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Fragments:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFragments)),
		labelStyle.Render("Messages:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Messages)),
		labelStyle.Render("Errors:"), func() string {
			if errs := m.stats.Errors(); errs > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errs))
			}
			return valueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Requests:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.RequestsSent)),
		labelStyle.Render("Resolved:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.RequestsResolved)),
		labelStyle.Render("Timeouts:"), func() string {
			if m.stats.RequestTimeouts > 0 {
				return warningStyle.Render(fmt.Sprintf("%d", m.stats.RequestTimeouts))
			}
			return valueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frag Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frag/s", m.stats.FragmentRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Query input
	s.WriteString(labelStyle.Render("Query field:"))
	s.WriteString(" ")
	s.WriteString(m.fieldInput.View())
	if m.querying {
		s.WriteString(warningStyle.Render("  (query in flight...)"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 18 // Reserve space for header, identity, and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					valueStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(logContent.String(), "\n")))

	return s.String()
}
