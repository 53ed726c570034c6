// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package errors

var (
	ErrMissingRoomID      = New(CodeMissingRoomID, "room id is required")
	ErrMissingUsername    = New(CodeInvalidInput, "username is required")
	ErrMissingMessage     = New(CodeInvalidInput, "username and message are required")
	ErrNameConflict       = New(CodeNameConflict, "username already taken in this room")
	ErrTooFast            = New(CodeTooFast, "too many requests")
	ErrMethodNotSupported = New(CodeMethodNotSupported, "method not supported")
	ErrNotFound           = New(CodeNotFound, "not found")
)

func ErrEncryptionFailed(cause error) error {
	return Wrap(CodeEncryptionFailure, "message encryption failed", cause)
}

func ErrStoreUnavailable(cause error) error {
	return Wrap(CodeStoreUnavailable, "store unavailable", cause)
}
