package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"github.com/uniflowhq/uniflow/internal/auth"
	"github.com/uniflowhq/uniflow/internal/httpapi"
	"github.com/uniflowhq/uniflow/internal/profiles"
	"github.com/uniflowhq/uniflow/internal/users"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("api exited with error", zap.Error(err))
	}
}

// config is the resolved server configuration.
type config struct {
	port           int
	corsOrigins    []string
	rateLimitRPS   int
	rateLimitBurst int
	databaseURL    string
	accessSecret   string
	refreshSecret  string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	google         httpapi.GoogleOAuthConfig
}

// loadConfig reads uniflow.yaml (configs/ or .) with env-var overrides and
// validates the required keys. Values from the file must be read only after
// ReadInConfig; the port-derived OAuth redirect default depends on that order.
func loadConfig(logger *zap.Logger) (config, error) {
	viper.SetConfigName("uniflow")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.rate_limit_burst", 40)
	viper.SetDefault("server.frontend_url", "http://localhost:5173")
	viper.SetDefault("database.url", "")
	viper.SetDefault("auth.access_secret", "")
	viper.SetDefault("auth.refresh_secret", "")
	viper.SetDefault("auth.access_ttl", "15m")
	viper.SetDefault("auth.refresh_ttl", "168h")
	viper.SetDefault("oauth.google.client_id", "")
	viper.SetDefault("oauth.google.client_secret", "")
	viper.SetDefault("oauth.google.redirect_url", "")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	cfg := config{
		port:           viper.GetInt("server.port"),
		corsOrigins:    viper.GetStringSlice("server.cors_origins"),
		rateLimitRPS:   viper.GetInt("server.rate_limit_rps"),
		rateLimitBurst: viper.GetInt("server.rate_limit_burst"),
		databaseURL:    viper.GetString("database.url"),
		accessSecret:   viper.GetString("auth.access_secret"),
		refreshSecret:  viper.GetString("auth.refresh_secret"),
		google: httpapi.GoogleOAuthConfig{
			ClientID:     viper.GetString("oauth.google.client_id"),
			ClientSecret: viper.GetString("oauth.google.client_secret"),
			RedirectURL:  viper.GetString("oauth.google.redirect_url"),
		},
	}
	if cfg.google.RedirectURL == "" {
		cfg.google.RedirectURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.port)
	}

	if cfg.databaseURL == "" {
		return config{}, errors.New("database.url is required (set DATABASE_URL)")
	}
	if cfg.accessSecret == "" || cfg.refreshSecret == "" {
		return config{}, errors.New("auth.access_secret and auth.refresh_secret are required")
	}
	if cfg.accessSecret == cfg.refreshSecret {
		logger.Warn("access and refresh secrets are identical — tokens lose their isolation property")
	}

	var err error
	if cfg.accessTTL, err = time.ParseDuration(viper.GetString("auth.access_ttl")); err != nil {
		return config{}, fmt.Errorf("parse auth.access_ttl: %w", err)
	}
	if cfg.refreshTTL, err = time.ParseDuration(viper.GetString("auth.refresh_ttl")); err != nil {
		return config{}, fmt.Errorf("parse auth.refresh_ttl: %w", err)
	}

	return cfg, nil
}

func run(logger *zap.Logger) error {
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	// ── Database ─────────────────────────────────────────────────────────────
	db, err := pgxpool.New(context.Background(), cfg.databaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	// ── Tokens ───────────────────────────────────────────────────────────────
	tokens := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  []byte(cfg.accessSecret),
		RefreshSecret: []byte(cfg.refreshSecret),
		AccessTTL:     cfg.accessTTL,
		RefreshTTL:    cfg.refreshTTL,
	})

	// ── Wire up layers ───────────────────────────────────────────────────────
	profileRepo := profiles.NewRepository(db)
	profileSvc := profiles.NewService(profileRepo, logger)

	userRepo := users.NewRepository(db)
	userSvc := users.NewService(userRepo, profileSvc, logger)

	if cfg.google.ClientID == "" {
		logger.Warn("Google OAuth not configured — /auth/google routes disabled")
	}

	authHandler := httpapi.NewAuthHandler(userSvc, tokens, cfg.google, logger)
	profileHandler := httpapi.NewProfileHandler(profileSvc, userSvc, tokens, logger)
	healthHandler := httpapi.NewHealthHandler(db, userRepo, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if cfg.rateLimitRPS > 0 {
		router.Use(httpapi.RateLimiter(cfg.rateLimitRPS, cfg.rateLimitBurst))
	}

	router.Use(httpapi.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/metrics", httpapi.MetricsHandler())

	root := router.Group("/")
	healthHandler.Register(root)
	authHandler.Register(root)
	profileHandler.Register(root)

	// ── Serve ────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("uniflow API listening", zap.Int("port", cfg.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down api...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("api stopped")
	return nil
}

// requestLogger logs each request with method, path, status, and latency.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
