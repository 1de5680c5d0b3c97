package api

import (
	"encoding/json"
	"net/http"

	"objectstore/logger"
	"objectstore/models"
)

// Envelope is a JSON response body. Successful operations send status "OK"
// plus operation-specific fields (see RespondOK); errors and the health
// check carry their own status values.
type Envelope map[string]interface{}

// RespondJSON writes payload as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

// RespondOK writes a 200 response merging fields into {"status": "OK"}.
func RespondOK(w http.ResponseWriter, fields Envelope) {
	body := Envelope{"status": "OK"}
	for k, v := range fields {
		body[k] = v
	}
	RespondJSON(w, http.StatusOK, body)
}

// RespondError classifies err's models.Kind into an HTTP status and writes
// a {"status": "ERROR", "message": ...} body. Internal errors log the full
// detail server-side but never echo it to the client.
func RespondError(w http.ResponseWriter, err error) {
	kind := models.ClassOf(err)
	code := http.StatusInternalServerError
	message := "internal error"

	switch kind {
	case models.KindInvalidArgument:
		code = http.StatusBadRequest
		message = err.Error()
	case models.KindUnauthenticated:
		code = http.StatusUnauthorized
		message = "authentication failed"
	case models.KindNotFound:
		code = http.StatusNotFound
		message = err.Error()
	case models.KindConflict:
		code = http.StatusConflict
		message = err.Error()
	default:
		logger.Error("internal error: %v", err)
	}

	RespondJSON(w, code, Envelope{"status": "ERROR", "message": message})
}
