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
	// RelayPairsActive is the gauge of currently paired server/client sockets.
	RelayPairsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pairs_active",
			Help:      "Number of currently paired relay connections",
		},
	)

	// RelayPairAttempts tracks pairing attempts by outcome.
	RelayPairAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pair_attempts_total",
			Help:      "Total number of relay pairing attempts",
		},
		[]string{"status"}, // paired, no_server, already_paired, timeout
	)

	// RelayBytesRelayed tracks bytes passed through the relay byte-pipe.
	RelayBytesRelayed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "bytes_total",
			Help:      "Total bytes relayed through the pair server",
		},
		[]string{"direction"}, // server_to_client, client_to_server
	)

	// RelayRateLimited tracks relayed messages delayed by the per-username
	// byte limiter and pair setups rejected by the pair-setup limiter.
	RelayRateLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rate_limited_total",
			Help:      "Total number of relayed messages delayed or pair setups rejected by the flood limiters",
		},
		[]string{"username"},
	)
)
