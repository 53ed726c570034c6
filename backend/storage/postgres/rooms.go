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

package postgres

import (
	"context"

	"github.com/fadechat/fadechat/backend/models"
)

func (s *Store) JoinUser(ctx context.Context, roomID, username string, now, activeThreshold int64) (bool, error) {
	// Single conditional write: insert the claim, or take over an existing
	// row only if its holder has gone stale. Zero rows affected means an
	// active holder exists and the name is taken.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (room_id, username, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, username) DO UPDATE
		SET last_seen = $3
		WHERE presence.last_seen <= $4`,
		roomID, username, now, activeThreshold)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) TouchPresence(ctx context.Context, roomID, username string, now int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (room_id, username, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, username) DO UPDATE
		SET last_seen = $3`,
		roomID, username, now)
	return err
}

func (s *Store) ActiveUsers(ctx context.Context, roomID string, activeThreshold int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username FROM presence
		WHERE room_id = $1 AND last_seen > $2`,
		roomID, activeThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		users = append(users, username)
	}

	return users, rows.Err()
}

func (s *Store) InsertMessage(ctx context.Context, msg models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_id, room_id, username, content, iv, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.MessageID, msg.RoomID, msg.Username, msg.Content, msg.IV, msg.Timestamp)
	if err != nil {
		return err
	}

	// Sending counts as a heartbeat.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO presence (room_id, username, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, username) DO UPDATE
		SET last_seen = $3`,
		msg.RoomID, msg.Username, msg.Timestamp)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	// seq breaks timestamp ties by insertion order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, room_id, username, content, iv, ts
		FROM messages
		WHERE room_id = $1
		ORDER BY ts DESC, seq DESC
		LIMIT $2`,
		roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.MessageID, &msg.RoomID, &msg.Username,
			&msg.Content, &msg.IV, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *Store) DeleteExpiredMessages(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DestroyRoom(ctx context.Context, roomID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE room_id = $1`, roomID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM presence WHERE room_id = $1`, roomID); err != nil {
		return err
	}

	return tx.Commit()
}
