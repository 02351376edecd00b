// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab
//
// Scalascope - Grundfos SCALA BLE Protocol Analyzer
//
// A CLI tool for talking to Grundfos SCALA pumps over BLE and decoding
// their wire protocol in human-readable format.

package main

import (
	"os"

	"github.com/Hydrolab/scalascope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
