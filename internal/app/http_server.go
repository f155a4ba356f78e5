// Package app wires HTTP, control sessions, signaling and the audio pipeline together.
package app

import (
	"encoding/json"
	"net/http"

	"github.com/frudas24/remotectl/internal/session"
)

// RegisterRoutes wires API and websocket handlers onto the mux.
func (a *App) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/input", a.handleInput)
	mux.HandleFunc("/api/audio/restart", a.handleAudioRestart)
	mux.Handle("/ws/control", a.Control())
	if sig := a.Signaling(); sig != nil {
		mux.Handle("/ws/signal", sig)
	}
	mux.HandleFunc("/favicon.ico", handleFavicon)
}

type inputRequest struct {
	Enabled *bool `json:"enabled"`
}

type stateResponse struct {
	session.Snapshot
	ScreenOn       bool   `json:"screenOn"`
	AudioEnabled   bool   `json:"audioEnabled"`
	AudioState     string `json:"audioState,omitempty"`
	ListenerActive bool   `json:"listenerActive"`
}

// handleState returns the session snapshot and device summary.
func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := stateResponse{
		Snapshot:     a.session.Snapshot(),
		ScreenOn:     a.dev.IsScreenOn(),
		AudioEnabled: a.cfg.AudioEnabled,
	}
	if a.signaling != nil {
		resp.ListenerActive = a.signaling.Active()
		resp.AudioState = a.signaling.AudioState()
	}
	writeJSON(w, resp)
}

// handleInput toggles the input kill switch.
func (a *App) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	a.session.SetInputEnabled(*req.Enabled)
	a.log.WithField("enabled", *req.Enabled).Info("app: input toggled")
	writeJSON(w, map[string]bool{"inputEnabled": a.session.InputEnabled()})
}

// handleAudioRestart restarts the audio pipeline.
func (a *App) handleAudioRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.RestartAudio("api"); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// handleHealth reports liveness.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
