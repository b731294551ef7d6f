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

package health

// CheckConnections reports the health of the active connection pool.
// active is the transport's current connection count; max is the
// configured ceiling (0 means unbounded, always healthy).
func CheckConnections(active, max int) *ConnectionHealth {
	health := &ConnectionHealth{
		Status: StatusHealthy,
		Active: active,
		Max:    max,
	}

	if max <= 0 {
		return health
	}

	ratio := float64(active) / float64(max) * 100
	switch {
	case ratio >= 95:
		health.Status = StatusUnhealthy
	case ratio >= 80:
		health.Status = StatusDegraded
	}
	return health
}
