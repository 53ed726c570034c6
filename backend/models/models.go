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

package models

// Message is one stored chat message. Content and IV are hex strings
// produced by the server-side box; the store treats them as opaque and a
// row whose pair fails decryption is dropped from reads, never fatal.
type Message struct {
	MessageID string `json:"message_id" db:"message_id"`
	RoomID    string `json:"room_id" db:"room_id"`
	Username  string `json:"username" db:"username"`
	Content   string `json:"content" db:"content"`
	IV        string `json:"iv" db:"iv"`
	Timestamp int64  `json:"timestamp" db:"ts"`
}

// Presence is a room membership heartbeat. At most one row exists per
// (room_id, username); a user is active while now-last_seen stays within
// the configured window. Stale rows are filtered out of reads rather than
// deleted; they only go away with the room.
type Presence struct {
	RoomID   string `json:"room_id" db:"room_id"`
	Username string `json:"username" db:"username"`
	LastSeen int64  `json:"last_seen" db:"last_seen"`
}

// ChatMessage is the decrypted wire form handed to clients.
type ChatMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SyncResponse is the authoritative room snapshot returned by the messages
// endpoint. Messages are oldest first; user order is not contractual.
type SyncResponse struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
	Users    []string      `json:"users"`
}
