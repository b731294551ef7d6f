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

package storage

import "time"

// Outcome classifies a single pairing/reconnect attempt for the audit
// trail.
type Outcome string

const (
	OutcomePaired       Outcome = "paired"
	OutcomeReconnected  Outcome = "reconnected"
	OutcomeAuthFailed   Outcome = "auth_failed"
	OutcomeExpired      Outcome = "expired"
	OutcomeExploitMarker Outcome = "exploit_marker"
)

// PairingRecord is one write-only audit row: a completed or failed
// handshake attempt. Never read back to gate authorization.
type PairingRecord struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	ClientDisplayName string    `json:"client_display_name"`
	Outcome           Outcome   `json:"outcome"`
	SecurityLevel     int       `json:"security_level"`
	RemoteAddr        string    `json:"remote_addr"`
	Timestamp         time.Time `json:"timestamp"`
}
