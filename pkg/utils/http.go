package utils

import (
	"encoding/json"
	"net/http"
)

// JSONError replies with {"ok":false,"error":message}, the same envelope
// shape Telegram uses, so webhook callers see a uniform body.
func JSONError(w http.ResponseWriter, status int, message string) {
	_ = JSONWrite(w, status, struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{false, message})
}

// JSONWrite encodes v with the given status; status 0 leaves the default.
func JSONWrite(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}
