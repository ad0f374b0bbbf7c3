package handlers

import (
	"encoding/json"
	"net/http"

	"webclip/internal/apperr"
	"webclip/internal/models"
)

// HandleLive reports that the process is serving requests.
func HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with the status mapped from err and a message fit for end users.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusCode(err), models.ActionResponse{Error: apperr.UserMessage(err)})
}
