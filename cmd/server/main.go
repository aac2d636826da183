package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stickyboard-server/internal/config"
	"stickyboard-server/internal/handler"
	"stickyboard-server/internal/metrics"
	"stickyboard-server/internal/repository"
	"stickyboard-server/internal/service"
	"stickyboard-server/internal/session"
	"stickyboard-server/internal/websocket"
	"stickyboard-server/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to CouchDB: %w", err)
	}
	if err := ensureDatabase(context.Background(), client, cfg.Database.Name, zlog); err != nil {
		return err
	}

	var boardRepo repository.BoardRepository = repository.NewBoardRepository(client, cfg.Database.Name, collector, zlog)
	breaker := repository.NewBreakerBoardRepository(boardRepo, repository.BreakerConfig{
		Name:             "couchdb-boards",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
	}, zlog)
	boardRepo = breaker

	var revocations repository.SessionRevocations = repository.NewMemorySessionRevocations()
	if cfg.Redis.Enabled {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rc.Close()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			zlog.Warn("redis unreachable, board cache will miss until it recovers", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		boardRepo = repository.NewCachedBoardRepository(boardRepo, rc, cfg.Redis.CacheTTL, collector)
		revocations = repository.NewRedisSessionRevocations(rc)
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)

	wsManager := websocket.NewManager(cfg.WebSocket, zlog.Named("ws"))
	sessions := session.NewManager(boardRepo, websocket.NewBoardNotifier(wsManager), collector, zlog.Named("session"))

	wsMessageHandler := handler.NewWebSocketMessageHandler(sessions, wsManager, cfg.WebSocket.WriteWait, zlog)
	wsManager.SetMessageHandler(wsMessageHandler)

	authService := service.NewAuthService(userRepo, sessions, revocations, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, zlog)
	userService := service.NewUserService(userRepo)

	retry := cfg.Server.RetryAfter
	router := handler.NewRouter(handler.Handlers{
		Auth:      handler.NewAuthHandler(authService, retry, zlog),
		User:      handler.NewUserHandler(userService, retry, zlog),
		Board:     handler.NewBoardHandler(sessions, retry, zlog),
		Note:      handler.NewNoteHandler(sessions, retry, zlog),
		Page:      handler.NewPageHandler(sessions, retry, zlog),
		WebSocket: handler.NewWebSocketHandler(wsManager, sessions, authService, cfg.WebSocket, zlog),
		Health:    handler.NewHealthHandler(breaker, sessions),
	}, handler.RouterConfig{
		Auth:    authService,
		CORS:    cfg.CORS,
		Metrics: collector,
		Logger:  zlog.Named("http"),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go wsManager.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("starting stickyboard server",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("couchdb", fmt.Sprintf("%s:%s", cfg.Database.Host, cfg.Database.Port)),
			zap.Bool("redis_cache", cfg.Redis.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("server stopped gracefully")
	return nil
}

// ensureDatabase creates the database on first start along with the indexes
// the user lookups rely on. Boards are read by key range and need none.
func ensureDatabase(ctx context.Context, client *kivik.Client, name string, zlog *zap.Logger) error {
	exists, err := client.DBExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, name); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		zlog.Info("created database", zap.String("name", name))
	}

	for _, field := range []string{"email", "username"} {
		index := map[string]interface{}{
			"fields": []string{"doc_type", field},
		}
		if err := client.DB(name).CreateIndex(ctx, "stickyboard", "by-type-"+field, index); err != nil {
			zlog.Warn("failed to create user index", zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}
