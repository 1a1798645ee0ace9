// Command cardduel starts the Card Duel server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the
//     realtime WebSocket channel and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server against a running API, starting an
//     internal one on a loopback port if none answers
//
// Settings come from config.yaml, CARDDUEL_* environment variables and an
// optional .env file. ngrok tunneling can be enabled for quick external access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/cardduel/server/api"
	"github.com/cardduel/server/archive"
	"github.com/cardduel/server/auth"
	"github.com/cardduel/server/config"
	"github.com/cardduel/server/game/history"
	"github.com/cardduel/server/game/service"
	"github.com/cardduel/server/game/session"
	"github.com/cardduel/server/logger"
	"github.com/cardduel/server/mq"
	"github.com/cardduel/server/repository/db"
	redisrepo "github.com/cardduel/server/repository/redis"
	"github.com/cardduel/server/transport/mcp"
	"github.com/cardduel/server/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Card Duel Server"
)

// gameStore is what the game service and the session store need from the
// configured game backend.
type gameStore interface {
	service.GameRepository
	session.Loader
}

// main loads .env, then hands over to the command line.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "cardduel",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: ./config.yaml or ./config/config.yaml)",
				Sources: cli.EnvVars("CARDDUEL_CONFIG"),
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "Run MCP stdio server proxying to the REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "api-url",
						Value: "http://localhost:8080",
						Usage: "REST API to proxy to",
					},
					&cli.StringFlag{
						Name:    "token",
						Usage:   "bearer token to start with (guest_login or login can set one later)",
						Sources: cli.EnvVars("CARDDUEL_TOKEN"),
					},
				},
				Action: runMCP,
			},
		},
	}
}

// loadConfig reads settings and initializes the global logger on out.
func loadConfig(cmd *cli.Command, out io.Writer) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cfg.Log.File != "" {
		if err := logger.InitWithFile(cfg.Log.File, cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	} else {
		logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	}
	return cfg, nil
}

// app is a fully wired server. close releases everything build opened.
type app struct {
	handler *api.Server
	hub     *websocket.Hub
	sched   gocron.Scheduler
	closers []func()
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Stop()
	}
	a.release()
}

func (a *app) release() {
	if a.sched != nil {
		if err := a.sched.Shutdown(); err != nil {
			logger.WarnGlobal().Err(err).Msg("Scheduler shutdown error")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires storage, services and transports. mcpBaseURL is where the
// mounted /mcp endpoint sends its REST calls.
func build(ctx context.Context, cfg *config.Config, mcpBaseURL string) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	var games gameStore
	switch cfg.Storage.Games {
	case "gorm":
		games = db.NewGameRepository(gdb)
	case "redis":
		rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		games = redisrepo.NewGameRepository(rdb, cfg.Storage.RedisTTL)
	case "file":
		fp, err := session.NewFilePersistence(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		games = fp
	default:
		return nil, fmt.Errorf("unsupported game storage %q", cfg.Storage.Games)
	}

	store := session.NewStore(games)
	a.sched, err = session.StartEviction(store, cfg.Session.EvictionInterval, cfg.Session.IdleTimeout)
	if err != nil {
		return nil, err
	}

	var sinks []history.Sink
	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Queue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, archiver)
	}

	gameService := service.NewGameService(service.Deps{
		Games:    games,
		Store:    store,
		Recorder: history.NewRecorder(db.NewHistoryRepository(gdb), sinks...),
	})

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.WarnGlobal().Msg("auth.jwt_secret not set; using a random secret, tokens will not survive a restart")
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.TokenTTL)
	users := auth.NewService(db.NewUserRepository(gdb), tokens)

	a.hub = websocket.NewHub()
	go a.hub.Run()

	a.handler = api.NewServer(gameService, users, websocket.NewHandler(a.hub, gameService, tokens, cfg.Server.AllowedOrigin))
	if mcpBaseURL != "" {
		a.handler.Mount("/mcp", mcpHandler(mcp.NewRequestClient(mcpBaseURL)))
	}

	logger.InfoGlobal().
		Str("database", cfg.Database.Driver).
		Str("games", cfg.Storage.Games).
		Int("sinks", len(sinks)).
		Msg("Services initialized")
	return a, nil
}

// mcpHandler serves single JSON-RPC messages over HTTP POST. Tool calls act
// as the caller's Authorization bearer token.
func mcpHandler(client *mcp.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ctx := r.Context()
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			ctx = mcp.WithToken(ctx, strings.TrimSpace(token))
		}
		response := client.GetMCPServer().HandleMessage(ctx, body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// runServe starts the HTTP server and, if enabled, an ngrok tunnel, then
// waits for SIGINT/SIGTERM.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr()
	logger.InfoGlobal().Str("version", Version).Msg("Starting " + AppName)

	a, err := build(ctx, cfg, "http://"+addr)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer a.close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.InfoGlobal().
			Str("rest", "http://"+addr+"/api").
			Str("websocket", "ws://"+addr+"/ws?token=<token>").
			Str("mcp", "http://"+addr+"/mcp").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, a.handler)
		}()
	}

	select {
	case sig := <-stop:
		logger.InfoGlobal().Str("signal", sig.String()).Msg("Shutting down")
	case err = <-serveErr:
		logger.ErrorGlobal().Err(err).Msg("HTTP server failed")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnGlobal().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	logger.InfoGlobal().Msg("Server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler) {
	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		logger.WarnGlobal().Msg("Ngrok enabled but no auth token provided (set ngrok.authtoken or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.ErrorGlobal().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}
	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	logger.InfoGlobal().Str("url", tun.URL()).Msg("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.WarnGlobal().Err(err).Msg("Ngrok server error")
	}
	logger.InfoGlobal().Msg("Ngrok tunnel closed")
}

// runMCP runs an MCP stdio server. It uses the API at --api-url when it
// answers /health; otherwise it starts an internal server on a random
// loopback port. Logs go to stderr since stdout carries the protocol.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}

	baseURL := cmd.String("api-url")
	if !apiAvailable(baseURL) {
		logger.InfoGlobal().Str("api_url", baseURL).Msg("No API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		a, err := build(ctx, cfg, "")
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer a.close()

		httpServer := &http.Server{Handler: a.handler}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorGlobal().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()
	}

	logger.InfoGlobal().Str("api_url", baseURL).Msg("MCP stdio server ready")

	client := mcp.NewClient(baseURL, cmd.String("token"))
	if err := mcpserver.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
