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

func (s *Store) Migrate() error {
	migrations := []string{
		// Messages table. content/iv are hex text, opaque to the store.
		// seq orders messages with equal timestamps by insertion.
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL,
			message_id VARCHAR(64) PRIMARY KEY,
			room_id VARCHAR(255) NOT NULL,
			username VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			iv TEXT NOT NULL,
			ts BIGINT NOT NULL
		)`,

		// Index for the sync read path (newest window per room).
		`CREATE INDEX IF NOT EXISTS idx_room_messages
		ON messages(room_id, ts DESC)`,

		// Index for the retention sweep.
		`CREATE INDEX IF NOT EXISTS idx_message_age
		ON messages(ts)`,

		// Presence heartbeats. There is deliberately no rooms table: room
		// existence is implied by rows here and in messages. Stale rows are
		// filtered by last_seen on read and only ever deleted when their
		// room is destroyed.
		`CREATE TABLE IF NOT EXISTS presence (
			room_id VARCHAR(255) NOT NULL,
			username VARCHAR(255) NOT NULL,
			last_seen BIGINT NOT NULL,
			PRIMARY KEY (room_id, username)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
