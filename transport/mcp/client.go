package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/transport/websocket"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer

	// shared is false for clients serving many callers; tokens then come
	// only from the request context.
	shared bool
	mu     sync.RWMutex
	token  string
}

type tokenKey struct{}

// WithToken attaches the caller's API token to ctx. It takes precedence
// over the token stored by login tools.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// NewClient creates a new MCP client that calls the REST API. token may be
// empty; guest_login and login set it.
func NewClient(baseURL, token string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		shared: true,
		token:  token,
	}

	c.initMCPServer()
	return c
}

// NewRequestClient creates a client for a multi-caller endpoint. It never
// remembers a token: every call authenticates with the token from WithToken,
// and the login tools hand the token back to the caller instead.
func NewRequestClient(baseURL string) *Client {
	c := NewClient(baseURL, "")
	c.shared = false
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Card Duel",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Card Duel - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Card Duel is a two-player game of extended rock-paper-scissors. Call
game_rules for the full rules.

Start with guest_login (or login) so the other tools act as you. Use
create_game with another player's id to start a duel, then get_game to follow
it. Cards are played over the realtime connection, not through these tools.`),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Accounts
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "guest_login",
		Description: "Create a guest account and use it for subsequent calls",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGuestLogin)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "login",
		Description: "Sign in with a username and password and use the account for subsequent calls",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": stringProp("Account username"),
				"password": stringProp("Account password"),
			},
			Required: []string{"username", "password"},
		},
	}, c.handleLogin)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "my_profile",
		Description: "Show the signed-in account and its win/loss record",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleProfile)

	// Games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Start a duel between the signed-in player and an opponent",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"opponent_id": stringProp("User id of the opponent"),
				"private": map[string]interface{}{
					"type":        "boolean",
					"description": "Create a private game joinable by room code",
				},
			},
			Required: []string{"opponent_id"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get a game as the signed-in player sees it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": stringProp("Game id"),
			},
			Required: []string{"game_id"},
		},
	}, c.handleGetGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game_by_room",
		Description: "Find a private game by its six character room code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_code": stringProp("Room code, e.g. 7KQ2ZD"),
			},
			Required: []string{"room_code"},
		},
	}, c.handleGetGameByRoom)

	// Results
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "player_stats",
		Description: "Aggregate results of a player's finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": stringProp("User id of the player"),
			},
			Required: []string{"player_id"},
		},
	}, c.handlePlayerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "player_history",
		Description: "A player's most recent finished games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": stringProp("User id of the player"),
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of games (default 10)",
				},
			},
			Required: []string{"player_id"},
		},
	}, c.handlePlayerHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Explain how rounds and games are decided",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) setToken(token string) {
	if !c.shared {
		return
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken(ctx context.Context) string {
	if token := tokenFrom(ctx); token != "" || !c.shared {
		return token
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleGuestLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session auth.Session
	if err := c.apiCall(ctx, http.MethodPost, "/api/auth/guest", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.setToken(session.Token)
	return mcp.NewToolResultText(c.sessionText(&session)), nil
}

func (c *Client) handleLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{
		"username": request.GetString("username", ""),
		"password": request.GetString("password", ""),
	}

	var session auth.Session
	if err := c.apiCall(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.setToken(session.Token)
	return mcp.NewToolResultText(c.sessionText(&session)), nil
}

func (c *Client) sessionText(s *auth.Session) string {
	text := formatSession(s)
	if !c.shared {
		text += fmt.Sprintf("Token: %s\nSend it as \"Authorization: Bearer <token>\" on later calls.\n", s.Token)
	}
	return text
}

func (c *Client) handleProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var profile auth.Profile
	if err := c.apiCall(ctx, http.MethodGet, "/api/users/me", nil, &profile); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatProfile(&profile)), nil
}

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]interface{}{
		"opponentId": request.GetString("opponent_id", ""),
		"isPrivate":  request.GetBool("private", false),
	}

	var view websocket.GameView
	if err := c.apiCall(ctx, http.MethodPost, "/api/games", body, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Game created\n\n" + formatGame(&view)), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID := request.GetString("game_id", "")

	var view websocket.GameView
	if err := c.apiCall(ctx, http.MethodGet, "/api/games/"+url.PathEscape(gameID), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGame(&view)), nil
}

func (c *Client) handleGetGameByRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := request.GetString("room_code", "")

	var view websocket.GameView
	if err := c.apiCall(ctx, http.MethodGet, "/api/games/room/"+url.PathEscape(code), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGame(&view)), nil
}

func (c *Client) handlePlayerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID := request.GetString("player_id", "")

	var stats engine.PlayerStats
	path := fmt.Sprintf("/api/players/%s/stats", url.PathEscape(playerID))
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStats(playerID, &stats)), nil
}

// HistoryResponse is the body of GET /api/players/{id}/history
type HistoryResponse struct {
	Count     int                   `json:"count"`
	Histories []*engine.GameHistory `json:"histories"`
}

func (c *Client) handlePlayerHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID := request.GetString("player_id", "")
	limit := request.GetInt("limit", 0)

	path := fmt.Sprintf("/api/players/%s/history", url.PathEscape(playerID))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response HistoryResponse
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(playerID, &response)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameRules()), nil
}
