// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP API. Handlers decode the
// request, call the article service or the profile store and map errors to
// status codes through apperr.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proofpress/internal/apperr"
)

// maxBodyBytes bounds request bodies. Article content is the largest field.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

// writeError maps err to a status and a client-safe message. Server-side
// failures are logged with the request path.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: apperr.Message(err)})
}

// decodeJSON reads a JSON object from the request body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.ErrInvalid, "Request body is required")
		case errors.As(err, &maxErr):
			return apperr.New(apperr.ErrInvalid, "Request body is too large")
		case errors.As(err, &syntaxErr):
			return apperr.New(apperr.ErrInvalid, "Malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return apperr.New(apperr.ErrInvalid, "Field %q has the wrong type", typeErr.Field)
		default:
			return apperr.New(apperr.ErrInvalid, "Invalid request body: %s", err.Error())
		}
	}
	if dec.More() {
		return apperr.New(apperr.ErrInvalid, "Request body must contain a single JSON object")
	}
	return nil
}

// parseID reads the {id} URL parameter.
func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.ErrNotFound, "Article not found")
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.ErrInvalid, "%s must be a non-negative integer", key)
	}
	return n, nil
}

// fieldError formats a validation message for a single field.
func fieldError(msg string) error {
	return apperr.New(apperr.ErrInvalid, "%s", msg)
}
