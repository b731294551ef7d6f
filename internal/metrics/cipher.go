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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CipherOperations tracks cipher.Encrypt/Decrypt calls.
	CipherOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cipher",
			Name:      "operations_total",
			Help:      "Total number of message cipher operations",
		},
		[]string{"operation", "status"}, // encrypt/decrypt, success/failure
	)

	// CipherOperationDuration tracks cipher operation durations.
	CipherOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cipher",
			Name:      "operation_duration_seconds",
			Help:      "Message cipher operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 163ms
		},
		[]string{"operation"}, // encrypt, decrypt
	)

	// SRPOperations tracks srp.Engine Handshake/Authenticate calls.
	SRPOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cipher",
			Name:      "srp_operations_total",
			Help:      "Total number of SRP-6a engine operations",
		},
		[]string{"operation", "status"}, // handshake/authenticate, success/failure
	)
)
