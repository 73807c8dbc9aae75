package main

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"
)

// mockState tracks behaviour and next change time for a single endpoint.
type mockState struct {
	modeIdx      int
	nextChangeAt time.Time
}

// mockModes are cycled through by every endpoint of the mock server.
var mockModes = []string{"ok", "slow", "down"}

// StartMockHealthServer runs a mock health endpoint that cycles through
// healthy, slow and failing behaviour. Each endpoint changes mode every
// 20-60 seconds.
// Call this in a goroutine before starting Pulsewatch.
func StartMockHealthServer(addr string) {
	var (
		states = make(map[string]*mockState)
		mu     sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("svc")
		env := r.URL.Query().Get("env")
		key := svc + "-" + env

		mu.Lock()
		state, exists := states[key]
		if !exists {
			state = &mockState{nextChangeAt: nextChange()}
			states[key] = state
		}
		if time.Now().After(state.nextChangeAt) {
			old := mockModes[state.modeIdx]
			state.modeIdx = (state.modeIdx + 1) % len(mockModes)
			state.nextChangeAt = nextChange()
			slog.Info("mode change", "endpoint", key, "from", old, "to", mockModes[state.modeIdx])
		}
		mode := mockModes[state.modeIdx]
		mu.Unlock()

		// simulate small latency variance, or a slow response
		delay := time.Duration(50+rand.IntN(150)) * time.Millisecond
		if mode == "slow" {
			delay += 3 * time.Second
		}
		time.Sleep(delay)

		if mode == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"svc":    svc,
			"env":    env,
			"status": mode,
		}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.IntN(41)) * time.Second)
}
