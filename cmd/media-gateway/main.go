package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/princekumarofficial/chat-media-service/internal/cache"
	"github.com/princekumarofficial/chat-media-service/internal/config"
	"github.com/princekumarofficial/chat-media-service/internal/delivery"
	mediaHandlers "github.com/princekumarofficial/chat-media-service/internal/http/handlers/media"
	relayHandlers "github.com/princekumarofficial/chat-media-service/internal/http/handlers/relay"
	wsHandlers "github.com/princekumarofficial/chat-media-service/internal/http/handlers/websocket"
	"github.com/princekumarofficial/chat-media-service/internal/http/middleware"
	"github.com/princekumarofficial/chat-media-service/internal/media"
	"github.com/princekumarofficial/chat-media-service/internal/probe"
	"github.com/princekumarofficial/chat-media-service/internal/ratelimit"
	"github.com/princekumarofficial/chat-media-service/internal/relay"
	"github.com/princekumarofficial/chat-media-service/internal/services/objectstore"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
	"github.com/princekumarofficial/chat-media-service/internal/websocket"
)

func main() {
	// load config
	cfg := config.MustLoad()
	logger := config.SetupLogger(cfg)

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Connected to Redis", slog.String("address", cfg.Redis.Address))
	}

	var objects relayHandlers.ObjectSource
	if cfg.MinIO.Enabled {
		store, err := objectstore.NewService(ctx, cfg.MinIO)
		if err != nil {
			logger.Error("failed to initialize object store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		objects = store
		logger.Info("Connected to object store", slog.String("bucket", cfg.MinIO.BucketName))
	}

	hosts := mediaHosts(cfg.Hosts)
	router := relay.NewRouter(cfg.Relay.BaseURL, cfg.Relay.DefaultInstance, nil)
	inspector := media.NewInspector(hosts, router)
	memo := newMemo(cfg, redisClient, logger)

	allowedHosts := cfg.Relay.AllowedHosts
	if len(allowedHosts) == 0 {
		allowedHosts = hosts.PrimaryStore
	}
	fetchClient := &http.Client{Timeout: cfg.Relay.FetchTimeout}

	prober := probe.New(&http.Client{}, cfg.Probe.MinBytes, logger)
	mediaH := mediaHandlers.NewMediaHandlers(inspector, router, prober, allowedHosts, cfg.Probe.Timeout)
	relayH := relayHandlers.NewHandlers(relayHandlers.Options{
		Client:          fetchClient,
		Objects:         objects,
		AllowedHosts:    allowedHosts,
		DecryptUpstream: cfg.Relay.DecryptUpstream,
		Logger:          logger,
	})

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	}
	rateLimits := middleware.NewRateLimitConfig(limiter, logger)

	hub := websocket.NewHub()
	go hub.Run()

	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	// setup server
	mux := http.NewServeMux()

	mux.Handle("POST /api/media/resolve", middleware.Metrics("resolve", auth(mediaH.Resolve())))
	mux.Handle("GET /api/media/probe", middleware.Metrics("probe", auth(mediaH.Probe())))

	mux.Handle("GET "+relay.MediaRelayPath, middleware.Metrics("media_relay",
		rateLimits.RateLimitedHandler("media-relay", relayH.MediaRelay())))
	mux.Handle("GET "+relay.ObjectRelayPath, middleware.Metrics("object_relay",
		rateLimits.RateLimitedHandler("object-relay", relayH.ObjectRelay())))
	mux.Handle("GET "+relay.DecryptRelayPath, middleware.Metrics("decrypt_relay",
		rateLimits.RateLimitedHandler("decrypt-relay", relayH.DecryptRelay())))

	mux.Handle("GET /ws/media", wsHandlers.WebSocketHandler(hub, cfg.JWTSecret, wsHandlers.SessionDeps{
		Inspector:      inspector,
		Routes:         router,
		Memo:           memo,
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		Logger:         logger,
	}))

	if redisClient != nil {
		mux.Handle("GET /admin/cache/stats", auth(cache.GetCacheStats(redisClient)))
		mux.Handle("DELETE /admin/cache", auth(cache.ClearCache(redisClient)))
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"sessions": hub.GetClientCount(),
			"redis":    redisClient != nil,
			"minio":    objects != nil,
		}
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
				return
			}
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("ok", status))
	})

	server := http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTPServer.ReadTimeout,
	}

	logger.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-done

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
	}
	hub.Stop()
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server stopped")
}

// mediaHosts overlays configured origins on the built-in defaults.
func mediaHosts(h config.Hosts) media.Hosts {
	hosts := media.DefaultHosts()
	if len(h.PrimaryStore) > 0 {
		hosts.PrimaryStore = h.PrimaryStore
	}
	if len(h.SecondaryStore) > 0 {
		hosts.SecondaryStore = h.SecondaryStore
	}
	if len(h.Encrypted) > 0 {
		hosts.Encrypted = h.Encrypted
	}
	return hosts
}

func newMemo(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) delivery.Memo {
	switch cfg.Memo.Backend {
	case "redis":
		logger.Info("relay memo enabled", slog.String("backend", "redis"), slog.Duration("ttl", cfg.Memo.TTL))
		return cache.NewRedisMemo(redisClient, cfg.Memo.TTL, logger)
	case "memory":
		logger.Info("relay memo enabled", slog.String("backend", "memory"), slog.Int("size", cfg.Memo.Size))
		return cache.NewLRUMemo(cfg.Memo.Size, cfg.Memo.TTL)
	}
	return nil
}
