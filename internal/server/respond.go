package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

const msgInvalidJSON = "Invalid JSON in request body"

// errorBody is the plain error envelope.
type errorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// storeErrorBody passes database diagnostics through; absent fields are null.
type storeErrorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Warn().Err(err).Msg("writeJSON")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError reports err with the database's message, detail and hint.
func writeStoreError(w http.ResponseWriter, err error) {
	body := storeErrorBody{Error: err.Error()}
	if se, ok := store.AsError(err); ok {
		body.Error = se.Message
		body.Details = nonEmpty(se.Details)
		body.Hint = nonEmpty(se.Hint)
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

// persistDetails is the "details" value for a failed write.
func persistDetails(err error) *string {
	if se, ok := store.AsError(err); ok {
		return &se.Message
	}
	msg := err.Error()
	return &msg
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: trailing data")
	}
	return nil
}
