package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"console/internal/adapters/consoleapi"
	"console/internal/adapters/cookie"
	web "console/internal/adapters/http"
	"console/internal/adapters/http/perf"
	"console/internal/adapters/i18n"
	"console/internal/adapters/identity"
	"console/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Parse("console", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := i18n.NewCatalog()
	if err != nil {
		slog.Error("catalog_load_failed", "error", err)
		os.Exit(1)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	var hashKey []byte
	if cfg.CookieHashKey != "" {
		hashKey = []byte(cfg.CookieHashKey)
	} else if cfg.IsProduction() {
		slog.Warn("unsigned_credential_cookies", "detail", "set CONSOLE_COOKIE_HASH_KEY to sign the member/code pair")
	}

	handler, err := web.NewMux(ctx, web.Deps{
		Resolver:           identity.NewRestyResolver(cfg.IdentityURL, cfg.LookupTimeout, collector),
		Jar:                cookie.NewJar(hashKey, cfg.IsProduction()),
		Catalog:            catalog,
		API:                consoleapi.New(cfg.IdentityURL, cfg.LookupTimeout),
		Collector:          collector,
		LandingRoute:       cfg.LandingRoute,
		CSRFKey:            cfg.CSRFAuthKey(),
		SecureCookies:      cfg.IsProduction(),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})
	if err != nil {
		slog.Error("server_init_failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	slog.Info("console_starting",
		"version", version,
		"addr", cfg.Addr,
		"env", cfg.Env,
		"identity_url", cfg.IdentityURL,
		"lookup_timeout", cfg.LookupTimeout.String(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("console_stopped")
}
