// Package httputil holds the JSON envelope helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is an HTTP-facing error with a stable machine code.
type Error struct {
	Status      int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func NewError(status int, code, description string) *Error {
	return &Error{Status: status, Code: code, Description: description}
}

func BadRequest(description string) *Error {
	return NewError(http.StatusBadRequest, "bad_request", description)
}

func Unauthorized(description string) *Error {
	return NewError(http.StatusUnauthorized, "unauthorized", description)
}

func Unavailable(description string) *Error {
	return NewError(http.StatusServiceUnavailable, "service_unavailable", description)
}

func Internal(description string) *Error {
	return NewError(http.StatusInternalServerError, "internal_error", description)
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the {"error", "error_description"} envelope.
// Descriptions of 5xx errors and of untyped errors are never sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	var httpErr *Error
	if !errors.As(err, &httpErr) {
		httpErr = Internal("")
	}
	body := map[string]string{"error": httpErr.Code}
	if httpErr.Status < http.StatusInternalServerError && httpErr.Description != "" {
		body["error_description"] = httpErr.Description
	}
	WriteJSON(w, httpErr.Status, body)
}
