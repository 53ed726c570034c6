// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package errors

import "net/http"

type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeMissingRoomID      Code = "MISSING_ROOM_ID"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNameConflict       Code = "NAME_CONFLICT"
	CodeEncryptionFailure  Code = "ENCRYPTION_FAILURE"
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodeTooFast            Code = "TOO_FAST"
	CodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus maps an error code to the status the handler boundary writes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMissingRoomID, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNameConflict:
		return http.StatusConflict
	case CodeMethodNotSupported:
		return http.StatusMethodNotAllowed
	case CodeTooFast:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEncryptionFailure, CodeStoreUnavailable, CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
