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

// Package reaper deletes messages past the retention window on a fixed
// schedule. Presence rows are never its concern: those self-expire via the
// active-threshold filter on reads.
package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fadechat/fadechat/backend/storage"
)

type Reaper struct {
	store     storage.MessageStore
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger

	now func() time.Time
}

func New(store storage.MessageStore, retention, interval time.Duration, logger zerolog.Logger) *Reaper {
	return &Reaper{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done. A
// failed sweep is logged and retried on the next tick; it never takes the
// process down.
func (r *Reaper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error().Err(err).Msg("retention sweep failed")
	}
}

// RunOnce deletes every message older than the retention window.
func (r *Reaper) RunOnce(ctx context.Context) error {
	cutoff := r.now().UnixMilli() - r.retention.Milliseconds()

	deleted, err := r.store.DeleteExpiredMessages(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		r.logger.Info().Int64("deleted", deleted).Msg("reaped expired messages")
	}
	return nil
}
