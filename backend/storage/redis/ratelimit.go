// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttlePrefix = "rl:" // rl:{identity}

// Throttle is a fixed-window-of-one rate limit backed by redis: one admit
// per identity per window, enforced by SET NX with a TTL. Keys expire on
// their own, so the throttle table never needs eviction and is shared
// across server processes.
type Throttle struct {
	rdb    *redis.Client
	window time.Duration
}

func NewThrottle(rdb *redis.Client, window time.Duration) *Throttle {
	return &Throttle{rdb: rdb, window: window}
}

func (t *Throttle) Allow(ctx context.Context, identity string) (bool, error) {
	return t.rdb.SetNX(ctx, throttlePrefix+identity, 1, t.window).Result()
}
