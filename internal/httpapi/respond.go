package httpapi

import (
	"encoding/json"
	"net/http"
)

// payload is the JSON envelope of every API response. Every body carries
// success and message; operation-specific fields ride alongside.
type payload map[string]any

func writeJSON(w http.ResponseWriter, status int, body payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, message string, extra payload) {
	body := payload{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, payload{"success": false, "message": message})
}

// genericFailure is the only message unexpected errors may surface; detail
// stays in the server log.
const genericFailure = "An error occurred. Please try again."
