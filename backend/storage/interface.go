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

package storage

import (
	"context"

	"github.com/fadechat/fadechat/backend/models"
)

type PresenceStore interface {
	// JoinUser atomically claims a username in a room: the claim succeeds
	// when no presence row exists or the existing row's last_seen is at or
	// below activeThreshold. Returns false when an active holder exists.
	// This is a single conditional write, not check-then-insert.
	JoinUser(ctx context.Context, roomID, username string, now, activeThreshold int64) (bool, error)

	// TouchPresence upserts the heartbeat row for (roomID, username),
	// unconditionally setting last_seen to now.
	TouchPresence(ctx context.Context, roomID, username string, now int64) error

	// ActiveUsers lists usernames with last_seen above activeThreshold.
	// Order is whatever the store returns; callers must not depend on it.
	ActiveUsers(ctx context.Context, roomID string, activeThreshold int64) ([]string, error)
}

type MessageStore interface {
	// InsertMessage appends a message row and, in the same transaction,
	// refreshes the sender's presence at msg.Timestamp: sending counts
	// as a heartbeat.
	InsertMessage(ctx context.Context, msg models.Message) error

	// RecentMessages returns up to limit rows for the room, newest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)

	// DeleteExpiredMessages removes all messages older than cutoff across
	// every room and reports how many rows went away.
	DeleteExpiredMessages(ctx context.Context, cutoff int64) (int64, error)
}

type RoomStore interface {
	PresenceStore
	MessageStore

	// DestroyRoom deletes all message and presence rows for the room as a
	// single batch. Destroying an empty room is not an error.
	DestroyRoom(ctx context.Context, roomID string) error
}

// Throttle admits at most one request per identity per window.
type Throttle interface {
	Allow(ctx context.Context, identity string) (bool, error)
}
