package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cambio/internal/auth"
	"github.com/MrJamesThe3rd/cambio/internal/chat"
	chatStore "github.com/MrJamesThe3rd/cambio/internal/chat/store"
	"github.com/MrJamesThe3rd/cambio/internal/config"
	"github.com/MrJamesThe3rd/cambio/internal/database"
	cambioHttp "github.com/MrJamesThe3rd/cambio/internal/http"
	chatHandler "github.com/MrJamesThe3rd/cambio/internal/http/chat"
	txHandler "github.com/MrJamesThe3rd/cambio/internal/http/transaction"
	userHandler "github.com/MrJamesThe3rd/cambio/internal/http/user"
	"github.com/MrJamesThe3rd/cambio/internal/logging"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	txStore "github.com/MrJamesThe3rd/cambio/internal/transaction/store"
	"github.com/MrJamesThe3rd/cambio/internal/user"
	userStore "github.com/MrJamesThe3rd/cambio/internal/user/store"
)

func main() {
	issueFor := flag.Int64("issue-token", 0, "print a bearer token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	if cfg.Auth.Secret == "" {
		slog.Error("AUTH_SECRET is required")
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)

	if *issueFor > 0 {
		token, err := verifier.Issue(*issueFor, *tokenTTL)
		if err != nil {
			slog.Error("failed to issue token", "error", err)
			os.Exit(1)
		}

		fmt.Println(token)

		return
	}

	if err := run(cfg, verifier); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, verifier *auth.Verifier) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	broker := chat.NewBroker(slog.Default())

	var (
		userService        = user.NewService(userStore.New(db))
		transactionService = transaction.NewService(txStore.New(db), userService, cfg.Fee.Rate)
		chatService        = chat.NewService(chatStore.New(db), transactionService, cfg.Chat.MaxMessageLen)
	)

	transactionService.SetNotifier(broker)

	router := cambioHttp.New(cambioHttp.Handlers{
		Transactions: txHandler.NewHandler(transactionService),
		Users:        userHandler.NewHandler(userService),
		Chat:         chatHandler.NewHandler(chatService, broker, cfg.Server.AllowedOrigins, cfg.Chat.WriteTimeout),
	}, auth.Middleware(verifier, userService), cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "port", srv.Addr, "app", cfg.App.Name)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return nil
}
