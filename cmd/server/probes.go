package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
	"github.com/JaimeStill/tawarruq/pkg/module"
)

const probeTimeout = 3 * time.Second

type probeStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// probeRouter returns the root router with liveness and readiness endpoints.
// /healthz answers as long as the process serves HTTP; /readyz runs every
// registered probe and reports 503 until startup completes.
func probeRouter(lc *lifecycle.Coordinator) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, probeStatus{Status: "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		checks, ok := lc.Check(ctx)
		if !ok {
			writeProbe(w, http.StatusServiceUnavailable, probeStatus{Status: "not ready", Checks: checks})
			return
		}
		writeProbe(w, http.StatusOK, probeStatus{Status: "ready", Checks: checks})
	})

	return router
}

func writeProbe(w http.ResponseWriter, status int, body probeStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
