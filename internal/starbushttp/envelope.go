// internal/starbushttp/envelope.go
package starbushttp

import (
	"encoding/json"
	"net/http"

	"github.com/starbus/coordinator/internal/starbus"
)

// MaxPayloadSize caps request bodies the same way the rest of the
// codebase's handlers do, to stop a misbehaving client from pinning
// memory on a single request.
const MaxPayloadSize = 1 * 1024 * 1024

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// respondStarbusErr maps a *starbus.Error to the appropriate HTTP status,
// or falls back to 500 for anything else.
func respondStarbusErr(w http.ResponseWriter, err error) {
	se, ok := err.(*starbus.Error)
	if !ok {
		respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch se.Kind {
	case starbus.KindBadRequest:
		respondErr(w, http.StatusBadRequest, se.Msg)
	case starbus.KindNotFound:
		respondErr(w, http.StatusNotFound, se.Msg)
	case starbus.KindTypeMismatch:
		respondErr(w, http.StatusConflict, se.Msg)
	case starbus.KindStorageFailure, starbus.KindFilesystemFailure:
		respondErr(w, http.StatusInternalServerError, se.Msg)
	default:
		respondErr(w, http.StatusInternalServerError, se.Msg)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPayloadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
