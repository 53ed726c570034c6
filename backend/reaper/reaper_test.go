// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadechat/fadechat/backend/models"
)

// fakeStore keeps message timestamps and applies cutoffs like the real
// store would.
type fakeStore struct {
	mu         sync.Mutex
	timestamps []int64
	err        error
	sweeps     int
}

func (s *fakeStore) InsertMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamps = append(s.timestamps, msg.Timestamp)
	return nil
}

func (s *fakeStore) RecentMessages(context.Context, string, int) ([]models.Message, error) {
	return nil, nil
}

func (s *fakeStore) DeleteExpiredMessages(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	if s.err != nil {
		return 0, s.err
	}
	kept := s.timestamps[:0]
	var deleted int64
	for _, ts := range s.timestamps {
		if ts < cutoff {
			deleted++
		} else {
			kept = append(kept, ts)
		}
	}
	s.timestamps = kept
	return deleted, nil
}

func (s *fakeStore) remaining() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.timestamps))
	copy(out, s.timestamps)
	return out
}

func TestRunOnceDeletesOnlyExpiredMessages(t *testing.T) {
	store := &fakeStore{}
	retention := 24 * time.Hour

	r := New(store, retention, time.Hour, zerolog.Nop())
	now := time.UnixMilli(1_700_000_000_000)
	r.now = func() time.Time { return now }

	boundary := now.UnixMilli() - retention.Milliseconds()
	store.InsertMessage(context.Background(), models.Message{Timestamp: boundary - 1})
	store.InsertMessage(context.Background(), models.Message{Timestamp: now.UnixMilli() - 1})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []int64{now.UnixMilli() - 1}, store.remaining())
}

func TestRunOnceKeepsMessageExactlyAtBoundary(t *testing.T) {
	store := &fakeStore{}
	retention := time.Hour

	r := New(store, retention, time.Hour, zerolog.Nop())
	now := time.UnixMilli(1_700_000_000_000)
	r.now = func() time.Time { return now }

	// The cutoff is strict: ts < now-retention goes, ts == stays.
	boundary := now.UnixMilli() - retention.Milliseconds()
	store.InsertMessage(context.Background(), models.Message{Timestamp: boundary})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []int64{boundary}, store.remaining())
}

func TestRunOnceSurfacesStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	r := New(store, time.Hour, time.Hour, zerolog.Nop())
	assert.Error(t, r.RunOnce(context.Background()))
}

func TestRunSweepsImmediatelyAndStopsWithContext(t *testing.T) {
	store := &fakeStore{}
	r := New(store, time.Hour, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// The first sweep happens without waiting a full interval.
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.sweeps >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop with context")
	}
}

func TestRunKeepsGoingAfterFailedSweep(t *testing.T) {
	store := &fakeStore{err: errors.New("transient")}
	r := New(store, time.Hour, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Failures are retried on the next tick, never fatal.
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.sweeps >= 3
	}, time.Second, 10*time.Millisecond)
}
