package status

import (
	"encoding/json"
	"net/http"

	"media-sync/internal/logging"
)

// writeJSON encodes a JSON response with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn("status: failed to encode response: %v", err)
	}
}
