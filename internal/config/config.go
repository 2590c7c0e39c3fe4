// Package config loads console and directory settings.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional .env file, command-line flags, then CONSOLE_* environment variables.
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var (
	ErrMissingIdentityURL = errors.New("identity service URL is required")
	ErrMissingCSRFKey     = errors.New("CSRF key is required in production")
	ErrShortKey           = errors.New("keys must be at least 32 bytes")
	ErrBadLookupTimeout   = errors.New("lookup timeout must be positive")
)

// Config holds the settings of both binaries.
type Config struct {
	Addr          string
	IdentityURL   string
	LookupTimeout time.Duration
	LandingRoute  string
	CookieHashKey string
	CSRFKey       string
	Env           string
	LogLevel      string

	DirectoryAddr string
	DirectoryDB   string
	ConsoleURL    string
	ResendKey     string
	MailFrom      string

	RateLimitPerSecond int
}

// Defaults returns the development configuration.
func Defaults() Config {
	return Config{
		Addr:               ":8080",
		IdentityURL:        "http://localhost:8081",
		LookupTimeout:      10 * time.Second,
		LandingRoute:       "/initialize",
		Env:                EnvDevelopment,
		LogLevel:           "info",
		DirectoryAddr:      ":8081",
		DirectoryDB:        "directory.db",
		ConsoleURL:         "http://localhost:8080",
		MailFrom:           "Console <console@localhost>",
		RateLimitPerSecond: 20,
	}
}

// Parse builds a Config for the named binary.
// PRE: args excludes the program name
// POST: Returns the merged config; pflag.ErrHelp when --help was requested
func Parse(name string, args []string) (*Config, error) {
	cfg := Defaults()

	envFile := ".env"
	if v, ok := os.LookupEnv("CONSOLE_ENV_FILE"); ok {
		envFile = v
	}
	if err := cfg.applyDotEnv(envFile); err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDotEnv reads path without exporting it into the process environment.
// A missing file is not an error.
func (c *Config) applyDotEnv(path string) error {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	slog.Debug("dotenv_loaded", "path", path, "keys", len(values))
	return c.applyEnv(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Addr, "addr", "a", c.Addr, "console listen address")
	fs.StringVarP(&c.IdentityURL, "identity-url", "i", c.IdentityURL, "identity service base URL")
	fs.DurationVar(&c.LookupTimeout, "lookup-timeout", c.LookupTimeout, "identity lookup timeout")
	fs.StringVar(&c.LandingRoute, "landing-route", c.LandingRoute, "route served when no next target is given")
	fs.StringVar(&c.Env, "env", c.Env, "development or production")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.DirectoryAddr, "directory-addr", c.DirectoryAddr, "directory listen address")
	fs.StringVar(&c.DirectoryDB, "directory-db", c.DirectoryDB, "directory sqlite database path")
	fs.StringVar(&c.ConsoleURL, "console-url", c.ConsoleURL, "public console URL used in login links")
	fs.StringVar(&c.MailFrom, "mail-from", c.MailFrom, "sender address of login-link mail")
	fs.IntVar(&c.RateLimitPerSecond, "rate-limit", c.RateLimitPerSecond, "requests per second per client")
}

// applyEnv overrides fields from CONSOLE_* variables found by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CONSOLE_ADDR":            &c.Addr,
		"CONSOLE_IDENTITY_URL":    &c.IdentityURL,
		"CONSOLE_LANDING_ROUTE":   &c.LandingRoute,
		"CONSOLE_COOKIE_HASH_KEY": &c.CookieHashKey,
		"CONSOLE_CSRF_KEY":        &c.CSRFKey,
		"CONSOLE_ENV":             &c.Env,
		"CONSOLE_LOG_LEVEL":       &c.LogLevel,
		"CONSOLE_DIRECTORY_ADDR":  &c.DirectoryAddr,
		"CONSOLE_DIRECTORY_DB":    &c.DirectoryDB,
		"CONSOLE_URL":             &c.ConsoleURL,
		"CONSOLE_RESEND_KEY":      &c.ResendKey,
		"CONSOLE_MAIL_FROM":       &c.MailFrom,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}
	if v, ok := lookup("CONSOLE_LOOKUP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CONSOLE_LOOKUP_TIMEOUT: %w", err)
		}
		c.LookupTimeout = d
	}
	if v, ok := lookup("CONSOLE_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONSOLE_RATE_LIMIT: %w", err)
		}
		c.RateLimitPerSecond = n
	}
	return nil
}

// Validate checks the settings the console cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IdentityURL) == "" {
		return ErrMissingIdentityURL
	}
	if c.LookupTimeout <= 0 {
		return ErrBadLookupTimeout
	}
	if c.IsProduction() && c.CSRFKey == "" {
		return ErrMissingCSRFKey
	}
	for _, key := range []string{c.CSRFKey, c.CookieHashKey} {
		if key != "" && len(key) < 32 {
			return ErrShortKey
		}
	}
	return nil
}

// CSRFAuthKey returns the 32-byte key gorilla/csrf expects, derived from
// CSRFKey. Nil when no key is configured.
func (c *Config) CSRFAuthKey() []byte {
	if c.CSRFKey == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(c.CSRFKey))
	return sum[:]
}

// IsProduction reports whether secure cookies and strict keys apply.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
