// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keeagentd",
	Short: "keeagentd - password manager <-> browser extension pairing daemon",
	Long: `keeagentd terminates the WebSocket connection a browser extension opens
to a locally running password manager, carries it through the SRP-6a
pairing handshake (or a stored-key reconnect), and relays decrypted
RPC payloads to the host application once authorised.

This tool supports:
- SRP-6a pairing and stored-key reconnection over WebSocket
- AES-CBC/SHA-1 request/response message encryption
- Per-connection pairing audit trail (memory or PostgreSQL backed)
- Prometheus metrics and liveness/readiness health endpoints`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
