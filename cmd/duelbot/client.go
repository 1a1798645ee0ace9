package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/transport/websocket"
)

// Client talks to the REST API and the realtime channel as one player
type Client struct {
	baseURL string
	client  *http.Client
	session *auth.Session
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// UserID is the signed-in player's id
func (c *Client) UserID() string {
	if c.session == nil {
		return ""
	}
	return c.session.User.UserID
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != nil {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

// Guest signs in as a fresh guest account
func (c *Client) Guest(ctx context.Context) error {
	var s auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/guest", nil, &s); err != nil {
		return err
	}
	c.session = &s
	return nil
}

// CreateGame deals a game against opponentID
func (c *Client) CreateGame(ctx context.Context, opponentID string, private bool) (*websocket.GameView, error) {
	var view websocket.GameView
	err := c.do(ctx, http.MethodPost, "/api/games", map[string]interface{}{
		"opponentId": opponentID,
		"isPrivate":  private,
	}, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Dial opens the realtime connection
func (c *Client) Dial(ctx context.Context) (*gws.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.session.Token}}.Encode()

	conn, _, err := gws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

func send(conn *gws.Conn, kind websocket.InboundKind, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(websocket.Envelope{Type: string(kind), Payload: data})
}
