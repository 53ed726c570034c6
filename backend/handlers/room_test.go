// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadechat/fadechat/backend/crypto"
	"github.com/fadechat/fadechat/backend/models"
)

const testTimeout = time.Minute

// memStore is an in-memory RoomStore with the same semantics as the
// postgres store: conditional join, heartbeat upserts, newest-first reads
// with insertion-order tie-breaks, batched destroy.
type memStore struct {
	mu       sync.Mutex
	presence map[string]map[string]int64
	messages map[string][]models.Message
}

func newMemStore() *memStore {
	return &memStore{
		presence: make(map[string]map[string]int64),
		messages: make(map[string][]models.Message),
	}
}

func (s *memStore) JoinUser(_ context.Context, roomID, username string, now, activeThreshold int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.presence[roomID][username]; ok && last > activeThreshold {
		return false, nil
	}
	s.touch(roomID, username, now)
	return true, nil
}

func (s *memStore) TouchPresence(_ context.Context, roomID, username string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(roomID, username, now)
	return nil
}

func (s *memStore) touch(roomID, username string, now int64) {
	if s.presence[roomID] == nil {
		s.presence[roomID] = make(map[string]int64)
	}
	s.presence[roomID][username] = now
}

func (s *memStore) ActiveUsers(_ context.Context, roomID string, activeThreshold int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for name, last := range s.presence[roomID] {
		if last > activeThreshold {
			users = append(users, name)
		}
	}
	return users, nil
}

func (s *memStore) InsertMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], msg)
	s.touch(msg.RoomID, msg.Username, msg.Timestamp)
	return nil
}

func (s *memStore) RecentMessages(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asc := make([]models.Message, len(s.messages[roomID]))
	copy(asc, s.messages[roomID])
	sort.SliceStable(asc, func(i, j int) bool { return asc[i].Timestamp < asc[j].Timestamp })

	if len(asc) > limit {
		asc = asc[len(asc)-limit:]
	}

	desc := make([]models.Message, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		desc = append(desc, asc[i])
	}
	return desc, nil
}

func (s *memStore) DeleteExpiredMessages(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for room, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.Timestamp < cutoff {
				deleted++
			} else {
				kept = append(kept, m)
			}
		}
		s.messages[room] = kept
	}
	return deleted, nil
}

func (s *memStore) DestroyRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, roomID)
	delete(s.presence, roomID)
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestHandler() (*RoomHandler, *memStore, *fakeClock) {
	store := newMemStore()
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	h := NewRoomHandler(store, crypto.NewBox(""), testTimeout, 50, zerolog.Nop())
	h.now = clk.Now
	return h, store, clk
}

func testRouter(h *RoomHandler) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowed)
	r.HandleFunc("/api/room/{roomId}/messages", h.Sync).Methods("GET")
	r.HandleFunc("/api/room/{roomId}/send", h.Send).Methods("POST")
	r.HandleFunc("/api/room/{roomId}/join", h.Join).Methods("POST")
	r.HandleFunc("/api/room/{roomId}/destroy", h.Destroy).Methods("POST")
	return r
}

func doRequest(r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSync(t *testing.T, w *httptest.ResponseRecorder) models.SyncResponse {
	t.Helper()
	var resp models.SyncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestJoinConflictWithinActiveWindow(t *testing.T) {
	h, _, clk := newTestHandler()
	r := testRouter(h)

	w := doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "NAME_CONFLICT")

	// Same name in another room is fine.
	w = doRequest(r, http.MethodPost, "/api/room/r2/join", `{"username":"alice"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Once the first holder ages out, the name is free again.
	clk.Advance(testTimeout + time.Millisecond)
	w = doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJoinRequiresUsername(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	w := doRequest(r, http.MethodPost, "/api/room/r1/join", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestSendRequiresUsernameAndMessage(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	for _, body := range []string{`{}`, `{"username":"alice"}`, `{"message":"hi"}`, `not json`} {
		w := doRequest(r, http.MethodPost, "/api/room/r1/send", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestSendEncryptsAtRestAndHeartbeats(t *testing.T) {
	h, store, clk := newTestHandler()
	r := testRouter(h)

	w := doRequest(r, http.MethodPost, "/api/room/r1/send", `{"username":"alice","message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored := store.messages["r1"]
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0].Content, "hello")
	assert.NotEmpty(t, stored[0].IV)
	assert.Equal(t, clk.Now().UnixMilli(), stored[0].Timestamp)

	// The send doubled as a heartbeat: alice shows active without joining.
	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	assert.Equal(t, []string{"alice"}, resp.Users)
}

func TestSyncReturnsMessagesOldestFirst(t *testing.T) {
	h, _, clk := newTestHandler()
	r := testRouter(h)

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"username":"alice","message":"msg-%d"}`, i)
		require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", body).Code)
		clk.Advance(time.Second)
	}

	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	require.Len(t, resp.Messages, 5)
	for i, m := range resp.Messages {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Message)
		if i > 0 {
			assert.GreaterOrEqual(t, m.Timestamp, resp.Messages[i-1].Timestamp)
		}
	}
}

func TestSyncRespectsRetrieveLimit(t *testing.T) {
	h, _, clk := newTestHandler()
	h.retrieveLimit = 3
	r := testRouter(h)

	for i := 0; i < 7; i++ {
		body := fmt.Sprintf(`{"username":"alice","message":"msg-%d"}`, i)
		require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", body).Code)
		clk.Advance(time.Second)
	}

	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	require.Len(t, resp.Messages, 3)
	// The window holds the newest messages, still oldest first.
	assert.Equal(t, "msg-4", resp.Messages[0].Message)
	assert.Equal(t, "msg-6", resp.Messages[2].Message)
}

func TestSyncDropsOnlyUndecryptableRows(t *testing.T) {
	h, store, clk := newTestHandler()
	r := testRouter(h)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", `{"username":"alice","message":"good one"}`).Code)
	clk.Advance(time.Second)

	// A corrupt row straight into the store: content/iv pair is garbage.
	store.InsertMessage(context.Background(), models.Message{
		MessageID: "corrupt",
		RoomID:    "r1",
		Username:  "mallory",
		Content:   "not-hex",
		IV:        "also-not-hex",
		Timestamp: clk.Now().UnixMilli(),
	})
	clk.Advance(time.Second)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", `{"username":"alice","message":"good two"}`).Code)

	w := doRequest(r, http.MethodGet, "/api/room/r1/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSync(t, w)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "good one", resp.Messages[0].Message)
	assert.Equal(t, "good two", resp.Messages[1].Message)
}

func TestSyncHeartbeatKeepsIdleUserPresent(t *testing.T) {
	h, _, clk := newTestHandler()
	r := testRouter(h)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`).Code)

	// Idle but polling with ?user= stays present past the raw timeout.
	clk.Advance(testTimeout / 2)
	doRequest(r, http.MethodGet, "/api/room/r1/messages?user=alice", "")
	clk.Advance(testTimeout / 2)

	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	assert.Equal(t, []string{"alice"}, resp.Users)

	// Without further heartbeats the user ages out.
	clk.Advance(testTimeout + time.Millisecond)
	resp = decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	assert.Empty(t, resp.Users)
}

func TestSyncEmptyRoomReturnsEmptyLists(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	w := doRequest(r, http.MethodGet, "/api/room/empty/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	// JSON arrays, not nulls: polling clients iterate these blindly.
	assert.Contains(t, w.Body.String(), `"messages":[]`)
	assert.Contains(t, w.Body.String(), `"users":[]`)
	assert.Contains(t, w.Body.String(), `"type":"sync"`)
}

func TestDestroyIsCompleteAndIdempotent(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`).Code)
	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", `{"username":"alice","message":"hello"}`).Code)

	w := doRequest(r, http.MethodPost, "/api/room/r1/destroy", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	assert.Empty(t, resp.Messages)
	assert.Empty(t, resp.Users)

	// Destroying an already-empty room still succeeds.
	w = doRequest(r, http.MethodPost, "/api/room/r1/destroy", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnmatchedRoutes(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	w := doRequest(r, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/api/room/r1/messages", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "METHOD_NOT_SUPPORTED")
}

func TestJoinSendSyncScenario(t *testing.T) {
	h, _, _ := newTestHandler()
	r := testRouter(h)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`).Code)
	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/room/r1/send", `{"username":"alice","message":"hello"}`).Code)
	require.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/api/room/r1/join", `{"username":"alice"}`).Code)

	resp := decodeSync(t, doRequest(r, http.MethodGet, "/api/room/r1/messages", ""))
	assert.Equal(t, "sync", resp.Type)
	assert.Equal(t, []string{"alice"}, resp.Users)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "alice", resp.Messages[0].Username)
	assert.Equal(t, "hello", resp.Messages[0].Message)
}
