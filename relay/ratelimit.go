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

package relay

import (
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"

	"github.com/relaywire/relaywire/internal/metrics"
)

// relayUnitBytes is the accounting granularity the byte-rate limiter
// paces at: one Take() corresponds to this many relayed bytes.
const relayUnitBytes = 4096

// pairSetupsPerMinute bounds how many pair setups a single username may
// see per minute, independent of the byte throughput limit — this is the
// "maximum pair setups per minute" flood rule. server_register and
// client_connect attempts draw on the same quota.
const pairSetupsPerMinute = 6

// limiterRegistry hands out per-username flood limiters, built lazily on
// first use. It backs both of the pair server's flood rules: sustained
// bytes per minute, paced with a blocking go.uber.org/ratelimit limiter,
// and pair setups per minute, rejected outright by a non-blocking
// golang.org/x/time/rate limiter — the two rules call for different
// shapes of limiter and get one each.
type limiterRegistry struct {
	mu          sync.Mutex
	bytesPerSec float64
	burst       int
	bytes       map[string]ratelimit.Limiter
	pairSetup   map[string]*rate.Limiter
}

func newLimiterRegistry(bytesPerSec float64, burst int) *limiterRegistry {
	return &limiterRegistry{
		bytesPerSec: bytesPerSec,
		burst:       burst,
		bytes:       make(map[string]ratelimit.Limiter),
		pairSetup:   make(map[string]*rate.Limiter),
	}
}

func (r *limiterRegistry) byteLimiter(username string) ratelimit.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.bytes[username]; ok {
		return l
	}
	rate := int(r.bytesPerSec / relayUnitBytes)
	if rate < 1 {
		rate = 1
	}
	slack := r.burst / relayUnitBytes
	l := ratelimit.New(rate, ratelimit.Per(time.Second), ratelimit.WithSlack(slack))
	r.bytes[username] = l
	return l
}

// throttle blocks the caller until n bytes are permitted to cross the
// pipe for username, pacing in relayUnitBytes increments.
func (r *limiterRegistry) throttle(username string, n int) {
	l := r.byteLimiter(username)
	units := (n + relayUnitBytes - 1) / relayUnitBytes
	if units < 1 {
		units = 1
	}
	start := time.Now()
	for i := 0; i < units; i++ {
		l.Take()
	}
	if time.Since(start) > time.Millisecond {
		metrics.RelayRateLimited.WithLabelValues(username).Inc()
	}
}

// allowPairSetup reports whether username may attempt another pairing
// right now, rejecting outright past the quota rather than queuing the
// caller.
func (r *limiterRegistry) allowPairSetup(username string) bool {
	r.mu.Lock()
	l, ok := r.pairSetup[username]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/pairSetupsPerMinute), pairSetupsPerMinute)
		r.pairSetup[username] = l
	}
	r.mu.Unlock()

	if !l.Allow() {
		metrics.RelayRateLimited.WithLabelValues(username).Inc()
		return false
	}
	return true
}

// release drops a username's limiter state once its registration or
// pairing ends, so the maps do not grow without bound.
func (r *limiterRegistry) release(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bytes, username)
	delete(r.pairSetup, username)
}
