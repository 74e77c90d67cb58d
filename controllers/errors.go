package controllers

import (
	"errors"
	"net/http"

	"github.com/bloodlink/bloodlink_backend/store"
)

// statusForError maps the store's error taxonomy onto HTTP codes.
// Anything unrecognized is a transient store failure and comes back as a
// 500 with the reason intact — never swallowed.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
