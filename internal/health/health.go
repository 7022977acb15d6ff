// Package health provides HTTP health and readiness handlers for the
// scribectl service.
//
//   - /healthz — liveness probe; returns 200 whenever the process serves.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     [Probe] passes. The storage backend and the recognizer bridge are the
//     usual probes.
//
// Responses are JSON with a top-level "status" and a "probes" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency
// is usable and an error describing the failure otherwise. It must respect
// context cancellation.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// KVProbe builds a Probe that round-trips a throwaway key through the
// given check function (typically a closure over store.KV Set/Delete).
func KVProbe(name string, roundTrip func(ctx context.Context) error) Probe {
	return Probe{Name: name, Check: roundTrip}
}

type response struct {
	Status    string            `json:"status"`
	Listening bool              `json:"listening"`
	Probes    map[string]string `json:"probes,omitempty"`
}

// Handler serves the health endpoints. The probe list is fixed at
// construction; the listening supplier is consulted per request.
// Safe for concurrent use.
type Handler struct {
	probes    []Probe
	listening func() bool
}

// New creates a Handler. listening may be nil when the deployment has no
// controller to report on.
func New(listening func() bool, probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p, listening: listening}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Listening: h.isListening()})
}

// Readyz evaluates every probe sequentially, each under its own timeout
// derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	probes := make(map[string]string, len(h.probes))
	ok := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			probes[p.Name] = "fail: " + err.Error()
			ok = false
		} else {
			probes[p.Name] = "ok"
		}
	}

	res := response{Status: "ok", Listening: h.isListening(), Probes: probes}
	status := http.StatusOK
	if !ok {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) isListening() bool {
	return h.listening != nil && h.listening()
}

// writeJSON encodes v with the given status code, falling back to a
// plain-text 500 on encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
