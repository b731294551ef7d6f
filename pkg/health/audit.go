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

// CheckAudit pings the pairing audit store. Returns nil when store is nil,
// meaning auditing is disabled and there is nothing to report.
func CheckAudit(ctx context.Context, store storage.Store, driver string) *AuditHealth {
	if store == nil {
		return nil
	}

	start := time.Now()
	health := &AuditHealth{Status: StatusHealthy, Driver: driver}

	if err := store.Ping(ctx); err != nil {
		health.Status = StatusUnhealthy
		health.Error = err.Error()
	}
	health.Latency = time.Since(start).String()
	return health
}
