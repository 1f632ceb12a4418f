// Package httpx carries the JSON conventions every handler shares:
// enveloped errors, request IDs, strict request decoding.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	})
}

// OK writes the standard success envelope: a fresh request id plus the
// caller's payload fields.
func OK(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"request_id": NewRequestID()}
	for k, v := range payload {
		body[k] = v
	}
	WriteJSON(w, status, body)
}
