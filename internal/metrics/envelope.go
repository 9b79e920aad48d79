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
	// EnvelopesSealed tracks outgoing envelopes by compression form.
	EnvelopesSealed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "sealed_total",
			Help:      "Total number of envelopes sealed for sending",
		},
		[]string{"format"}, // json, upload_chunk, gzip_json
	)

	// EnvelopesOpened tracks successfully decoded incoming envelopes.
	EnvelopesOpened = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "opened_total",
			Help:      "Total number of envelopes opened successfully",
		},
		[]string{"format"},
	)

	// EnvelopeDecodeFailures tracks envelopes that failed to decrypt or
	// decode, by reason.
	EnvelopeDecodeFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "decode_failures_total",
			Help:      "Total number of envelopes that failed to open",
		},
		[]string{"reason"}, // auth_failed (any envelope decode error), bad_format
	)

	// EnvelopeSize tracks plaintext envelope payload sizes.
	EnvelopeSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "payload_bytes",
			Help:      "Size in bytes of envelope plaintext payloads",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~4MiB
		},
	)
)
