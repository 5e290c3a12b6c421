// Package handlers implements the HTTP API handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/ledger"
	"github.com/dkadlec/presence/internal/match"
	"github.com/dkadlec/presence/internal/roster"
	"github.com/dkadlec/presence/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadSize bounds enrollment photo uploads (16 MB).
const maxUploadSize = 16 << 20

// Deps is the shared application state the handlers operate on. Roster is
// nil when no database is configured.
type Deps struct {
	Gallery   *gallery.Gallery
	Ledger    *ledger.Ledger
	Matcher   *match.Matcher
	Roster    *roster.Store
	Extractor session.Extractor

	// NewSource opens a fresh camera source for one session stream.
	NewSource func() (camera.Source, error)

	// SessionOpts carries the configured per-session defaults; Recorder,
	// Subject and Eligible are filled per request.
	SessionOpts session.Options
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
