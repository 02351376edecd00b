// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DeviceInfo aggregates the identity strings a pump reports over several
// device-info queries. The serial number arrives in two halves and long
// model strings arrive in parts, so the struct absorbs responses
// incrementally.
type DeviceInfo struct {
	Name        string
	Model       string
	Firmware    string
	SerialPart1 string
	SerialPart2 string
}

// Serial returns the combined serial number, or "" until both halves have
// been retrieved.
func (i *DeviceInfo) Serial() string {
	if i.SerialPart1 == "" || i.SerialPart2 == "" {
		return ""
	}
	return i.SerialPart1 + i.SerialPart2
}

// Absorb folds one device-info response into the aggregate. Responses from
// other command groups are ignored.
func (i *DeviceInfo) Absorb(resp *Response) {
	if resp == nil || resp.Group() != GroupDeviceInfo {
		return
	}
	v, err := DecodeAs(resp.Raw, KindString)
	if err != nil {
		return
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return
	}

	switch resp.Field() {
	case FieldName:
		i.Name = s
	case FieldSerial1:
		i.SerialPart1 = s
	case FieldSerial2:
		i.SerialPart2 = s
	case FieldModel:
		// Firmware version strings ("V01.00.02...") share the model field
		// and long model names span several responses.
		if strings.HasPrefix(s, "V") && strings.Contains(s, ".") {
			i.Firmware += s
		} else {
			if i.Model != "" {
				i.Model += " "
			}
			i.Model += s
		}
	}
}

// ReadDeviceInfo performs the handshake and walks the known device-info
// queries, absorbing whatever the pump answers. Individual query failures
// are tolerated: a pump that refuses one field often still answers the
// rest. The last error seen is returned alongside whatever was gathered.
func ReadDeviceInfo(ctx context.Context, d *Device) (DeviceInfo, error) {
	var info DeviceInfo

	if err := sendPaced(ctx, d, func() error { return d.Handshake(ctx) }); err != nil {
		return info, err
	}

	var lastErr error
	for _, field := range []byte{FieldName, FieldSerial1, FieldSerial2, FieldModel} {
		var resp *Response
		err := sendPaced(ctx, d, func() error {
			var err error
			resp, err = d.Send(ctx, NewDeviceInfoQuery(field), KindString, 0)
			return err
		})
		if err != nil {
			lastErr = err
			continue
		}
		info.Absorb(resp)
	}
	return info, lastErr
}

// sendPaced retries a send that bounced off the pacing floor, sleeping
// until the reported earliest-next-send time. Other errors pass through.
func sendPaced(ctx context.Context, d *Device, send func() error) error {
	for {
		err := send()
		var tooSoon *TooSoonError
		if !errors.As(err, &tooSoon) {
			return err
		}
		wait := time.Until(tooSoon.Earliest)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
