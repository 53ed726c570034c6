// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fadechat/fadechat/backend/crypto"
	apperrors "github.com/fadechat/fadechat/backend/errors"
	"github.com/fadechat/fadechat/backend/models"
	"github.com/fadechat/fadechat/backend/storage"
)

// RoomHandler implements the room protocol: join, send, sync, destroy.
// It holds no room state of its own; the store is the only coordination
// point between concurrent requests.
type RoomHandler struct {
	store         storage.RoomStore
	box           *crypto.Box
	userTimeout   time.Duration
	retrieveLimit int
	logger        zerolog.Logger

	now func() time.Time
}

func NewRoomHandler(store storage.RoomStore, box *crypto.Box, userTimeout time.Duration, retrieveLimit int, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		store:         store,
		box:           box,
		userTimeout:   userTimeout,
		retrieveLimit: retrieveLimit,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		writeError(w, apperrors.ErrMissingRoomID)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if req.Username == "" {
		writeError(w, apperrors.ErrMissingUsername)
		return
	}

	now := h.now().UnixMilli()
	ok, err := h.store.JoinUser(r.Context(), roomID, req.Username, now, now-h.userTimeout.Milliseconds())
	if err != nil {
		writeError(w, apperrors.ErrStoreUnavailable(err))
		return
	}
	if !ok {
		writeError(w, apperrors.ErrNameConflict)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RoomHandler) Send(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		writeError(w, apperrors.ErrMissingRoomID)
		return
	}

	var req struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if req.Username == "" || req.Message == "" {
		writeError(w, apperrors.ErrMissingMessage)
		return
	}

	content, iv, err := h.box.Encrypt(req.Message)
	if err != nil {
		// Nothing was stored; the caller may retry.
		writeError(w, apperrors.ErrEncryptionFailed(err))
		return
	}

	msg := models.Message{
		MessageID: uuid.New().String(),
		RoomID:    roomID,
		Username:  req.Username,
		Content:   content,
		IV:        iv,
		Timestamp: h.now().UnixMilli(),
	}

	if err := h.store.InsertMessage(r.Context(), msg); err != nil {
		writeError(w, apperrors.ErrStoreUnavailable(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *RoomHandler) Sync(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		writeError(w, apperrors.ErrMissingRoomID)
		return
	}

	now := h.now().UnixMilli()

	// A read with a user attached doubles as a heartbeat, keeping
	// idle-but-open chat windows present.
	if user := r.URL.Query().Get("user"); user != "" {
		if err := h.store.TouchPresence(r.Context(), roomID, user, now); err != nil {
			writeError(w, apperrors.ErrStoreUnavailable(err))
			return
		}
	}

	users, err := h.store.ActiveUsers(r.Context(), roomID, now-h.userTimeout.Milliseconds())
	if err != nil {
		writeError(w, apperrors.ErrStoreUnavailable(err))
		return
	}
	if users == nil {
		users = []string{}
	}

	recent, err := h.store.RecentMessages(r.Context(), roomID, h.retrieveLimit)
	if err != nil {
		writeError(w, apperrors.ErrStoreUnavailable(err))
		return
	}

	// Store order is newest first; clients get oldest first. A row that
	// fails decryption is dropped on its own, never the whole sync.
	messages := make([]models.ChatMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		plaintext, err := h.box.Decrypt(recent[i].Content, recent[i].IV)
		if err != nil {
			h.logger.Debug().
				Str("room", roomID).
				Str("message_id", recent[i].MessageID).
				Err(err).
				Msg("dropping undecryptable message")
			continue
		}
		messages = append(messages, models.ChatMessage{
			Username:  recent[i].Username,
			Message:   plaintext,
			Timestamp: recent[i].Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, models.SyncResponse{
		Type:     "sync",
		Messages: messages,
		Users:    users,
	})
}

func (h *RoomHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		writeError(w, apperrors.ErrMissingRoomID)
		return
	}

	if err := h.store.DestroyRoom(r.Context(), roomID); err != nil {
		writeError(w, apperrors.ErrStoreUnavailable(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "room destroyed",
	})
}
