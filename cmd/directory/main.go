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

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"console/internal/adapters/directory"
	emailPkg "console/internal/adapters/email"
	"console/internal/adapters/http/perf"
	"console/internal/adapters/i18n"
	"console/internal/adapters/storage"
	memberStore "console/internal/adapters/storage/member"
	"console/internal/application/orchestrators"
	"console/internal/config"
	"console/internal/domain/member"
	"console/internal/domain/session"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Parse("directory", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DirectoryDB)
	if err != nil {
		slog.Error("database_open_failed", "path", cfg.DirectoryDB, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	collector := perf.NewCollector(perf.DefaultRingSize)
	members := memberStore.NewSQLiteStore(storage.NewTimedDB(db, collector))

	catalog, err := i18n.NewCatalog()
	if err != nil {
		slog.Error("catalog_load_failed", "error", err)
		os.Exit(1)
	}

	// Seed the first admin and print its login link; the code is not recoverable later.
	seeded, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.SeedAdminInput{
		Name:     envOrDefault("CONSOLE_ADMIN_NAME", "Admin"),
		Email:    envOrDefault("CONSOLE_ADMIN_EMAIL", ""),
		Language: envOrDefault("CONSOLE_ADMIN_LANGUAGE", "fr"),
	}, orchestrators.SeedAdminDeps{
		MemberStore:  members,
		GenerateID:   uuid.NewString,
		GenerateCode: member.NewCode,
	})
	if err != nil {
		slog.Error("seed_admin_failed", "error", err)
		os.Exit(1)
	}
	if seeded.Created {
		link, err := orchestrators.BuildLoginLink(cfg.ConsoleURL,
			session.Credentials{Identifier: seeded.Member.ID, Code: seeded.Code}, "", session.PendingAction{})
		if err != nil {
			slog.Error("seed_admin_link_failed", "error", err)
			os.Exit(1)
		}
		slog.Info("admin_seeded", "member_id", seeded.Member.ID, "login_link", link)
	}

	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.MailFrom)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_disabled", "detail", "CONSOLE_RESEND_KEY is not set, login links are not delivered")
		} else {
			slog.Info("email_sender_configured", "provider", "noop")
		}
	}

	dir := directory.NewServer(directory.Deps{
		Members:    members,
		Sender:     sender,
		Translator: catalog,
		// Raw HTML in message bodies is escaped (WithUnsafe is not set).
		Markdown:     goldmark.New(goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps())),
		ConsoleURL:   cfg.ConsoleURL,
		GenerateCode: member.NewCode,
		Collector:    collector,
	})

	srv := &http.Server{
		Addr:              cfg.DirectoryAddr,
		Handler:           dir.Handler(),
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

	schema, _ := storage.SchemaVersion(ctx, db)
	slog.Info("directory_starting", "version", version, "addr", cfg.DirectoryAddr, "env", cfg.Env, "schema", schema)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("directory_stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
