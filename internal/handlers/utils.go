package handlers

import (
	"encoding/json"
	"net/http"

	"media-explorer/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes a status response as JSON with the given code.
func writeJSONStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"status": status})
}

// pathParam returns the p query parameter. An absent parameter is an error;
// an empty one is passed through for endpoints that treat it as the root.
func pathParam(r *http.Request) (string, error) {
	values, ok := r.URL.Query()["p"]
	if !ok || len(values) == 0 {
		return "", errMissingParameter
	}
	return values[0], nil
}
