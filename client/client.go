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

// Package client turns the server's stateless request/response surface
// into an apparently live chat stream: it polls the room snapshot on a
// fixed interval, replaces the local view wholesale on every response,
// and piggybacks presence heartbeats on reads once joined.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fadechat/fadechat/backend/e2e"
	"github.com/fadechat/fadechat/backend/models"
)

// DecryptFailedPlaceholder is rendered in place of a message body the
// end-to-end layer cannot open. Unlike the server, which silently drops
// rows it cannot decrypt, the E2E layer surfaces failure to the human.
const DecryptFailedPlaceholder = "[decryption failed]"

const defaultPollRate = 5 * time.Second

var ErrNameTaken = errors.New("username already taken in this room")

type Message struct {
	Username  string
	Body      string
	Timestamp int64
}

// Update is one authoritative room snapshot. Every poll produces a full
// replacement of the previous view, never a diff.
type Update struct {
	Messages []Message
	Users    []string
}

type Config struct {
	ServerURL string
	RoomID    string
	Username  string

	// Passphrase enables end-to-end encryption. It never leaves this
	// process; outgoing bodies are sealed before send and incoming
	// bodies opened after sync.
	Passphrase string

	PollRate   time.Duration
	HTTPClient *http.Client

	// OnUpdate receives each reconciled snapshot. Invocations are
	// serialized and always reflect poll order.
	OnUpdate func(Update)
	// OnError receives transient polling failures. Optional.
	OnError func(error)
}

type Client struct {
	baseURL  string
	roomID   string
	username string
	cipher   *e2e.Cipher
	http     *http.Client
	pollRate time.Duration
	onUpdate func(Update)
	onError  func(error)

	joined       atomic.Bool
	lastActivity atomic.Int64

	seq atomic.Uint64

	// applyMu serializes reconciliation; applied is the sequence of the
	// newest snapshot delivered, used to discard stale in-flight polls.
	applyMu sync.Mutex
	applied uint64
}

func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.RoomID == "" {
		return nil, errors.New("room id is required")
	}

	var cipher *e2e.Cipher
	if cfg.Passphrase != "" {
		var err error
		cipher, err = e2e.New(cfg.Passphrase, cfg.RoomID)
		if err != nil {
			return nil, fmt.Errorf("deriving room key: %w", err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	pollRate := cfg.PollRate
	if pollRate <= 0 {
		pollRate = defaultPollRate
	}

	return &Client{
		baseURL:  cfg.ServerURL,
		roomID:   cfg.RoomID,
		username: cfg.Username,
		cipher:   cipher,
		http:     httpClient,
		pollRate: pollRate,
		onUpdate: cfg.OnUpdate,
		onError:  cfg.OnError,
	}, nil
}

// Join claims the username in the room. On conflict or transport failure
// the client stays not-joined and the caller may retry with another name;
// polling is room-scoped and does not depend on join state.
func (c *Client) Join(ctx context.Context) error {
	if c.username == "" {
		return errors.New("username is required to join")
	}

	err := c.post(ctx, "join", map[string]string{"username": c.username})
	if err != nil {
		return err
	}

	c.joined.Store(true)
	return nil
}

// Send seals the body when E2E is enabled and submits it. The server
// counts a send as a heartbeat.
func (c *Client) Send(ctx context.Context, body string) error {
	if c.username == "" {
		return errors.New("username is required to send")
	}

	if c.cipher != nil {
		sealed, err := c.cipher.Seal(body)
		if err != nil {
			return err
		}
		body = sealed
	}

	if err := c.post(ctx, "send", map[string]string{
		"username": c.username,
		"message":  body,
	}); err != nil {
		return err
	}

	c.bumpActivity(time.Now().UnixMilli())
	return nil
}

// Destroy irreversibly deletes the room's messages and presence.
func (c *Client) Destroy(ctx context.Context) error {
	return c.post(ctx, "destroy", nil)
}

// Run performs one immediate sync, then polls at the configured rate until
// ctx is done. Polls may overlap under a slow server; responses that land
// after a newer snapshot are discarded by sequence comparison.
func (c *Client) Run(ctx context.Context) error {
	c.poll(ctx)

	ticker := time.NewTicker(c.pollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			go c.poll(ctx)
		}
	}
}

func (c *Client) Joined() bool {
	return c.joined.Load()
}

// LastActivity is the newest message timestamp seen, including local
// sends. Advisory state for idle-room UX only.
func (c *Client) LastActivity() int64 {
	return c.lastActivity.Load()
}

func (c *Client) poll(ctx context.Context) {
	seq := c.seq.Add(1)

	snapshot, err := c.fetchSync(ctx)
	if err != nil {
		if c.onError != nil {
			c.onError(err)
		}
		return
	}

	c.apply(seq, snapshot)
}

func (c *Client) fetchSync(ctx context.Context) (*models.SyncResponse, error) {
	u := c.actionURL("messages")
	if c.joined.Load() {
		// Reads double as heartbeats once joined.
		u += "?user=" + url.QueryEscape(c.username)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var snapshot models.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding sync response: %w", err)
	}
	return &snapshot, nil
}

// apply reconciles one snapshot into the local view, full-replace. Stale
// snapshots (an older poll finishing after a newer one) are dropped.
func (c *Client) apply(seq uint64, snapshot *models.SyncResponse) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if seq <= c.applied {
		return
	}
	c.applied = seq

	update := Update{
		Messages: make([]Message, 0, len(snapshot.Messages)),
		Users:    snapshot.Users,
	}

	for _, m := range snapshot.Messages {
		body := m.Message
		if c.cipher != nil {
			opened, err := c.cipher.Open(m.Message)
			if err != nil {
				body = DecryptFailedPlaceholder
			} else {
				body = opened
			}
		}
		update.Messages = append(update.Messages, Message{
			Username:  m.Username,
			Body:      body,
			Timestamp: m.Timestamp,
		})
		c.bumpActivity(m.Timestamp)
	}

	if c.onUpdate != nil {
		c.onUpdate(update)
	}
}

func (c *Client) bumpActivity(ts int64) {
	for {
		cur := c.lastActivity.Load()
		if ts <= cur || c.lastActivity.CompareAndSwap(cur, ts) {
			return
		}
	}
}

func (c *Client) post(ctx context.Context, action string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL(action), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) actionURL(action string) string {
	return c.baseURL + "/api/room/" + url.PathEscape(c.roomID) + "/" + action
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&payload)

	if resp.StatusCode == http.StatusConflict {
		return ErrNameTaken
	}
	if payload.Error != "" {
		return fmt.Errorf("server error (%d %s): %s", resp.StatusCode, payload.Code, payload.Error)
	}
	return fmt.Errorf("server error: status %d", resp.StatusCode)
}
