package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/maintenance"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

const errNoFace = "No face detected in the uploaded image. Please try another photo."

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, cluster.ErrNotFound),
		errors.Is(err, database.ErrRequestNotFound),
		errors.Is(err, maintenance.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, cluster.ErrConflict), errors.Is(err, database.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, cluster.ErrInvalidName),
		errors.Is(err, workflow.ErrInvalidEmail),
		errors.Is(err, workflow.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, cluster.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrNotifyFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with the status statusForError picks.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	message := err.Error()
	switch {
	case errors.Is(err, cluster.ErrNoFaceDetected):
		message = errNoFace
	case errors.Is(err, database.ErrRequestNotFound):
		message = "Request not found. Please check your Request ID and email."
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, sanitizeForLog(r.URL.Path), err)
	}
	respondError(w, status, message)
}

// decodeJSON reads a JSON body, rejecting unknown trailing data.
func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
