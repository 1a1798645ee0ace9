// Command validate checks Card Duel server configuration files before a
// deploy. For each YAML file it checks:
//   - the file parses and passes the server's own validation
//   - an auth.jwt_secret is set and long enough
//   - the selected game storage has what it needs (redis address, file dir)
//   - the database DSN is present
//   - optional sinks are complete (amqp URL scheme, archive region)
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardduel/server/config"
)

const minSecretLength = 32

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings are reported but do not.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	cfg, err := config.Load(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	switch n := len(cfg.Auth.JWTSecret); {
	case n == 0:
		result.warn("auth.jwt_secret is empty: a random secret is generated and tokens will not survive a restart")
	case n < minSecretLength:
		result.fail("auth.jwt_secret is %d characters, need at least %d", n, minSecretLength)
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		result.fail("database.dsn is required")
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == ":memory:" {
		result.warn("database.dsn is :memory:, accounts and history are lost on restart")
	}

	switch cfg.Storage.Games {
	case "redis":
		if cfg.Redis.Addr == "" {
			result.fail("storage.games is redis but redis.addr is empty")
		}
		if cfg.Storage.RedisTTL <= 0 {
			result.fail("storage.redis_ttl must be positive")
		}
	case "file":
		if cfg.Storage.Dir == "" {
			result.fail("storage.games is file but storage.dir is empty")
		}
	}

	if cfg.Session.EvictionInterval <= 0 {
		result.fail("session.eviction_interval must be positive")
	}
	if cfg.Session.IdleTimeout <= 0 {
		result.fail("session.idle_timeout must be positive")
	}

	if cfg.MQ.URL != "" {
		u, err := url.Parse(cfg.MQ.URL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			result.fail("mq.url must be an amqp:// or amqps:// URL")
		}
		if cfg.MQ.Queue == "" {
			result.fail("mq.queue is required when mq.url is set")
		}
	}

	if cfg.Archive.Bucket != "" && cfg.Archive.Region == "" {
		result.fail("archive.region is required when archive.bucket is set")
	}
	if cfg.Archive.AccessKeyID != "" && cfg.Archive.SecretAccessKey == "" {
		result.fail("archive.secret_access_key is required with archive.access_key_id")
	}

	if cfg.Ngrok.Enabled && cfg.Ngrok.AuthToken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
		result.warn("ngrok.enabled is set without an auth token, the tunnel will not start")
	}

	return result
}

// main validates the files given as arguments, or config.yaml and
// config/*.yaml when none are given, printing a concise report and exiting
// with non-zero status if any are invalid.
func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join("config", "*.yaml"))
		if err != nil {
			fmt.Printf("Error finding config files: %v\n", err)
			os.Exit(1)
		}
		if _, err := os.Stat("config.yaml"); err == nil {
			files = append(files, "config.yaml")
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		fmt.Println("No configuration files found")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, w := range result.Warnings {
			fmt.Println("  ⚠️  " + w)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
