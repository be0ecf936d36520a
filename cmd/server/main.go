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
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/pocketledger/internal/auth"
	"github.com/mmynk/pocketledger/internal/config"
	"github.com/mmynk/pocketledger/internal/ledger"
	"github.com/mmynk/pocketledger/internal/metrics"
	"github.com/mmynk/pocketledger/internal/middleware"
	"github.com/mmynk/pocketledger/internal/service"
	"github.com/mmynk/pocketledger/internal/storage/sqlite"
	"github.com/mmynk/pocketledger/pkg/api/apiconnect"
	"github.com/mmynk/pocketledger/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logging.SetupFromString(cfg.Log.Level)
	logger := slog.Default()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	m := metrics.New()
	l := ledger.New(store, m, logger)
	defer l.Close()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.TokenDuration())
	authenticator := auth.NewPasswordAuthenticator(store, cfg.Security.BcryptCost)

	// Logging runs outermost so rejected calls are logged and counted too.
	interceptors := connect.WithInterceptors(
		middleware.NewLoggingInterceptor(logger, m),
		middleware.NewAuthInterceptor(jwtManager, store, apiconnect.PublicProcedures...),
	)

	mux := http.NewServeMux()

	authPath, authHandler := apiconnect.NewAuthServiceHandler(
		service.NewAuthService(authenticator, jwtManager, store, logger), interceptors)
	mux.Handle(authPath, authHandler)

	txPath, txHandler := apiconnect.NewTransactionServiceHandler(
		service.NewTransactionService(l, m, logger), interceptors)
	mux.Handle(txPath, txHandler)

	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming over plain HTTP/2)
	handler := h2c.NewHandler(corsMiddleware(mux), &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		// Watch streams only end once their subscriptions are closed.
		l.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	logger.Info("Connect server starting",
		"address", server.Addr,
		"url", fmt.Sprintf("http://localhost%s", server.Addr),
		"env", cfg.App.Env,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
