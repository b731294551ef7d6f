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

import (
	"context"
	"time"

	"github.com/keeagent/keeagentd/pkg/storage"
)

// Checker performs health checks against the running daemon's process
// state, active connection pool, and pairing audit store.
type Checker struct {
	connCount   func() int
	maxConns    int
	auditStore  storage.Store
	auditDriver string
}

// NewChecker creates a health checker. connCount reports the transport's
// current connection count; maxConns is the configured ceiling (0 means
// unbounded). auditStore/auditDriver may be nil/empty when auditing is
// disabled.
func NewChecker(connCount func() int, maxConns int, auditStore storage.Store, auditDriver string) *Checker {
	return &Checker{
		connCount:   connCount,
		maxConns:    maxConns,
		auditStore:  auditStore,
		auditDriver: auditDriver,
	}
}

// CheckAll performs all health checks.
func (c *Checker) CheckAll(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	active := 0
	if c.connCount != nil {
		active = c.connCount()
	}
	status.ConnectionStatus = CheckConnections(active, c.maxConns)
	if status.ConnectionStatus.Status != StatusHealthy {
		status.Status = status.ConnectionStatus.Status
		if status.ConnectionStatus.Error != "" {
			status.Errors = append(status.Errors, "Connections: "+status.ConnectionStatus.Error)
		}
	}

	status.AuditStatus = CheckAudit(ctx, c.auditStore, c.auditDriver)
	if status.AuditStatus != nil && status.AuditStatus.Status != StatusHealthy {
		if status.Status == StatusHealthy {
			status.Status = status.AuditStatus.Status
		} else if status.AuditStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
		if status.AuditStatus.Error != "" {
			status.Errors = append(status.Errors, "Audit: "+status.AuditStatus.Error)
		}
	}

	status.SystemStatus = CheckSystem()
	if status.SystemStatus.Status != StatusHealthy {
		if status.Status == StatusHealthy {
			status.Status = status.SystemStatus.Status
		} else if status.SystemStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
		if status.SystemStatus.Error != "" {
			status.Errors = append(status.Errors, "System: "+status.SystemStatus.Error)
		}
	}

	return status
}
