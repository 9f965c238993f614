package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeMessage emits the `{"message": ...}` body shape clients expect for
// both successes and client errors.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// WriteMessage is the exported variant for middleware outside this package.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	writeMessage(w, status, message)
}

// WriteErrorBody emits the `{"error": ...}` body shape used for token
// verification failures.
func WriteErrorBody(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServerError reports a 500 echoing the underlying error's message in
// the body; clients rely on that detail field.
func writeServerError(w http.ResponseWriter, message string, err error) {
	body := map[string]string{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	writeMessage(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
}
