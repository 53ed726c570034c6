// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fadechat/fadechat/backend/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to a status and a structured JSON
// body. Foreign errors come out as a generic 500 carrying only the
// message text.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}

// NotFound is the router's fallback for unmatched paths.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apperrors.ErrNotFound)
}

// MethodNotAllowed is the router's fallback for matched paths with an
// unsupported method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apperrors.ErrMethodNotSupported)
}
