// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Hydrolab

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Hydrolab/scalascope/pkg/geni"
	"github.com/gorilla/websocket"
	"golang.org/x/term"
	"tinygo.org/x/bluetooth"
)

const (
	scanTimeout    = 15 * time.Second
	connectTimeout = 15 * time.Second
)

// BLETransport carries GATT packets to and from a pump: commands go out as
// writes without response, inbound fragments arrive as notifications.
type BLETransport struct {
	device    bluetooth.Device
	writeChar bluetooth.DeviceCharacteristic

	notif chan []byte
	done  chan struct{}
	once  sync.Once
}

func (t *BLETransport) Write(_ context.Context, pkt []byte) error {
	_, err := t.writeChar.WriteWithoutResponse(pkt)
	return err
}

func (t *BLETransport) Notifications() <-chan []byte { return t.notif }
func (t *BLETransport) Done() <-chan struct{}        { return t.done }

func (t *BLETransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.device.Disconnect()
}

// scanForPump scans until a matching advertisement is seen. An explicit
// address wins over a name substring; with neither, any pump advertising
// the Grundfos service name pattern matches.
func scanForPump(adapter *bluetooth.Adapter, address, name string) (bluetooth.ScanResult, error) {
	var found bluetooth.ScanResult
	var ok bool

	timer := time.AfterFunc(scanTimeout, func() { adapter.StopScan() })
	defer timer.Stop()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if address != "" {
			if !strings.EqualFold(result.Address.String(), address) {
				return
			}
		} else {
			local := result.LocalName()
			if local == "" {
				return
			}
			if name != "" {
				if !strings.Contains(strings.ToLower(local), strings.ToLower(name)) {
					return
				}
			} else if !strings.Contains(strings.ToUpper(local), "SCALA") {
				return
			}
		}
		found = result
		ok = true
		adapter.StopScan()
	})
	if err != nil {
		return found, fmt.Errorf("scan failed: %w", err)
	}
	if !ok {
		return found, fmt.Errorf("no matching pump found within %s", scanTimeout)
	}
	return found, nil
}

// OpenBLETransport scans for the pump, connects, and wires the protocol
// characteristic. The pump exposes its protocol on two custom services;
// most firmware puts writes and notifications on one characteristic, so
// the first characteristic that accepts a notification subscription is
// used for both unless a second one exists.
func OpenBLETransport(address, name string) (geni.Transport, string, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, "", fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	result, err := scanForPump(adapter, address, name)
	if err != nil {
		return nil, "", err
	}

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(connectTimeout),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	svcUUID1, _ := bluetooth.ParseUUID(geni.ServiceUUID1)
	svcUUID2, _ := bluetooth.ParseUUID(geni.ServiceUUID2)

	services, err := device.DiscoverServices([]bluetooth.UUID{svcUUID1, svcUUID2})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, "", fmt.Errorf("pump protocol service not found: %w", err)
	}

	t := &BLETransport{
		device: device,
		notif:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	var chars []bluetooth.DeviceCharacteristic
	for _, svc := range services {
		discovered, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		chars = append(chars, discovered...)
	}

	subscribed := false
	for _, c := range chars {
		c := c
		err := c.EnableNotifications(func(data []byte) {
			pkt := append([]byte(nil), data...)
			select {
			case t.notif <- pkt:
			case <-t.done:
			}
		})
		if err == nil {
			subscribed = true
			t.writeChar = c
			break
		}
	}
	if !subscribed {
		device.Disconnect()
		return nil, "", fmt.Errorf("no notifiable characteristic on pump %s", result.Address.String())
	}

	label := result.Address.String()
	if n := result.LocalName(); n != "" {
		label = fmt.Sprintf("%s (%s)", n, result.Address.String())
	}
	return t, fmt.Sprintf("BLE: %s", label), nil
}

// WebSocketTransport relays GATT packets over a bridge: each binary
// WebSocket message is one notification, each write is one GATT write.
type WebSocketTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	notif   chan []byte
	done    chan struct{}
	once    sync.Once
}

func (t *WebSocketTransport) Write(_ context.Context, pkt []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, pkt)
}

func (t *WebSocketTransport) Notifications() <-chan []byte { return t.notif }
func (t *WebSocketTransport) Done() <-chan struct{}        { return t.done }

func (t *WebSocketTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.conn.Close()
}

// readLoop pumps binary messages into the notification channel until the
// connection dies. Non-binary messages are skipped.
func (t *WebSocketTransport) readLoop() {
	defer t.once.Do(func() { close(t.done) })
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case t.notif <- data:
		case <-t.done:
			return
		}
	}
}

// OpenWebSocketTransport opens a WebSocket bridge connection with HTTP
// Basic auth.
func OpenWebSocketTransport(wsURL, username, password string, skipSSLVerify bool) (geni.Transport, string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, "", fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, "", fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, "", fmt.Errorf("WebSocket connection failed: %w", err)
	}

	t := &WebSocketTransport{
		conn:  conn,
		notif: make(chan []byte, 32),
		done:  make(chan struct{}),
	}
	go t.readLoop()

	return t, fmt.Sprintf("WebSocket: %s", wsURL), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SCALASCOPE_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenTransport opens either a BLE or WebSocket transport based on flags.
func OpenTransport() (geni.Transport, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		return OpenWebSocketTransport(wsURL, wsUsername, password, wsNoSSLVerify)
	}
	return OpenBLETransport(bleAddress, bleName)
}

// newLogger builds the slog logger handed to the device core: discard by
// default, debug to stderr with --verbose.
func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// openDevice opens the configured transport and starts a device core on it.
func openDevice(ctx context.Context) (*geni.Device, string, error) {
	transport, connInfo, err := OpenTransport()
	if err != nil {
		return nil, "", err
	}
	d := geni.NewDevice(transport, nil, newLogger())
	d.Start(ctx)
	return d, connInfo, nil
}
