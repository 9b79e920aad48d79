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
	// RequestsHandled tracks request/response round-trips by outcome.
	RequestsHandled = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Total number of application requests handled",
		},
		[]string{"status"}, // ok, app_error, error, timeout
	)

	// RequestDuration tracks request handling latency.
	RequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "request_duration_seconds",
			Help:      "Application request handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SubscriptionsActive is the gauge of open event subscriptions.
	SubscriptionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "subscriptions_active",
			Help:      "Number of currently open event subscriptions",
		},
	)

	// SubscriptionReplayLag tracks how many events were replayed on
	// (re)subscribe, as a proxy for how stale the client's cursor was.
	SubscriptionReplayLag = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "subscription_replay_events",
			Help:      "Number of events replayed to a subscriber on connect",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// UploadsCompleted tracks finished chunked uploads by outcome.
	UploadsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "uploads_total",
			Help:      "Total number of chunked uploads completed",
		},
		[]string{"status"}, // success, size_mismatch, finalize_error, quota_exceeded
	)

	// UploadThroughput tracks bytes transferred per completed upload.
	UploadThroughput = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "upload_bytes",
			Help:      "Total bytes transferred per completed upload",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)
