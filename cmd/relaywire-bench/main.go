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

// relaywire-bench drives repeated request/response round trips over an
// already-authenticated connection and reports latency percentiles. It
// exercises the client side of the wire protocol a real browser client
// would use, against a direct WebSocket endpoint; it does not perform the
// pair server's client_connect step.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/relaywire/relaywire/crypto/envelope"
	"github.com/relaywire/relaywire/pkg/wire"
	"github.com/relaywire/relaywire/srp"
)

var (
	url      string
	username string
	password string
	requests int
)

var rootCmd = &cobra.Command{
	Use:   "relaywire-bench",
	Short: "Benchmark request/response latency over a relaywire connection",
	RunE:  runBench,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8443/ws", "direct WebSocket URL (e.g. relayd's endpoint; pair-server pairing is not performed)")
	rootCmd.Flags().StringVar(&username, "username", "", "registered username")
	rootCmd.Flags().StringVar(&password, "password", "", "password")
	rootCmd.Flags().IntVar(&requests, "requests", 1000, "number of request/response round trips")
	_ = rootCmd.MarkFlagRequired("username")
	_ = rootCmd.MarkFlagRequired("password")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBench(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	key, err := handshake(ws)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	latencies := make([]time.Duration, 0, requests)
	for i := 0; i < requests; i++ {
		start := time.Now()
		if err := roundTrip(ws, key, i); err != nil {
			return fmt.Errorf("round trip %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(start))
	}

	report(latencies)
	return nil
}

func handshake(ws *websocket.Conn) ([32]byte, error) {
	if err := ws.WriteJSON(wire.SRPHello{Type: wire.TypeSRPHello, Identity: username}); err != nil {
		return [32]byte{}, err
	}
	var challenge wire.SRPServerChallenge
	if err := ws.ReadJSON(&challenge); err != nil {
		return [32]byte{}, err
	}

	client := srp.NewClientHandshake(username, password)
	proof, err := client.Finish(challenge.Salt, challenge.B)
	if err != nil {
		return [32]byte{}, err
	}
	if err := ws.WriteJSON(wire.SRPProof{Type: wire.TypeSRPProof, A: proof.A, M1: proof.M1}); err != nil {
		return [32]byte{}, err
	}

	var verify wire.SRPServerVerify
	if err := ws.ReadJSON(&verify); err != nil {
		return [32]byte{}, err
	}
	if !client.CheckServerProof(verify.M2) {
		return [32]byte{}, fmt.Errorf("server proof mismatch")
	}
	return client.SessionKey(), nil
}

func roundTrip(ws *websocket.Conn, key [32]byte, i int) error {
	reqID := fmt.Sprintf("bench-%d", i)
	body, err := json.Marshal(wire.Request{
		Type: wire.TypeRequest, ID: reqID, Method: "POST", Path: "/echo",
		Body: json.RawMessage(`{"n":` + fmt.Sprint(i) + `}`),
	})
	if err != nil {
		return err
	}
	frame, err := envelope.Encode(key, envelope.FormatJSON, body)
	if err != nil {
		return err
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return err
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	_, payload, err := envelope.Decode(key, data)
	if err != nil {
		return err
	}
	var resp wire.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return err
	}
	if resp.ID != reqID {
		return fmt.Errorf("response id mismatch: got %q want %q", resp.ID, reqID)
	}
	return nil
}

func report(latencies []time.Duration) {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(float64(len(latencies)-1) * p)
		return latencies[idx]
	}
	fmt.Printf("requests: %d\n", len(latencies))
	fmt.Printf("p50: %s\n", pct(0.50))
	fmt.Printf("p90: %s\n", pct(0.90))
	fmt.Printf("p99: %s\n", pct(0.99))
}
