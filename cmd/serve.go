package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/api"
	"github.com/jon4hz/bookshelf/internal/api/auth"
	"github.com/jon4hz/bookshelf/internal/api/handler"
	"github.com/jon4hz/bookshelf/internal/books"
	"github.com/jon4hz/bookshelf/internal/cache"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/gravatar"
	"github.com/jon4hz/bookshelf/internal/identity"
	"github.com/jon4hz/bookshelf/internal/notify/email"
	"github.com/jon4hz/bookshelf/internal/password"
	"github.com/jon4hz/bookshelf/internal/scheduler"
	"github.com/jon4hz/bookshelf/internal/token"
	"github.com/jon4hz/bookshelf/internal/upload"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Bookshelf server",
	Long:  `Start the Bookshelf server to handle signups, logins and book collection requests.`,
	Example: `bookshelf serve --config config.yml
bookshelf serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	hasher, err := password.New(cfg.GetPasswordCost(), cfg.GetPasswordWorkers())
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	tokens, err := token.NewManager(cfg.TokenSecret, cfg.GetTokenTTL())
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	uploads, err := upload.New(cfg.Upload, cfg.ServerURL)
	if err != nil {
		return err
	}

	var identityOpts []identity.Option
	if cfg.LoginLimit != nil && cfg.LoginLimit.Enabled {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		identityOpts = append(identityOpts, identity.WithLimiter(
			cache.NewLoginLimiter(c, cfg.LoginLimit.MaxAttempts, cfg.LoginLimit.Window),
		))
	}

	var notifier *email.NotificationService
	if cfg.Email != nil && cfg.Email.Enabled {
		notifier = email.New(cfg.Email, cfg.ServerURL)
		identityOpts = append(identityOpts, identity.WithNotifier(notifier))
	}

	users := identity.New(db, hasher, identityOpts...)

	avatars, err := gravatar.New(cfg.Gravatar)
	if err != nil {
		return err
	}
	handlerOpts := []handler.Option{handler.WithGravatar(avatars)}
	if cfg.Google != nil && cfg.Google.ClientID != "" {
		verifier, err := auth.NewGoogleVerifier(ctx, cfg.Google)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, handler.WithGoogleVerifier(verifier))
	}

	h := handler.New(users, books.NewManager(db), tokens, uploads, handlerOpts...)
	server, err := api.New(cfg, h, tokens, users, uploads.Dir(), log.GetLevel() == log.DebugLevel)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	if err := sched.AddSingletonCronJob(
		scheduler.CoverSweepJobID,
		"Orphaned cover sweep",
		cfg.Upload.CleanupSchedule,
		scheduler.CoverSweep(db, uploads, cfg.Upload.OrphanGrace),
	); err != nil {
		return fmt.Errorf("failed to schedule cover sweep: %w", err)
	}
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting API server", "listen", cfg.Listen)
		return server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully...")

		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("bookshelf started successfully")
	err = g.Wait()

	if notifier != nil {
		notifier.Wait()
	}
	return err
}
