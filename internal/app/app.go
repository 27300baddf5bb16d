package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bitescout/BiteScoutAPI/internal/access"
	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/config"
	"github.com/bitescout/BiteScoutAPI/internal/db"
	apihttp "github.com/bitescout/BiteScoutAPI/internal/http"
	"github.com/bitescout/BiteScoutAPI/internal/http/api/admin"
	"github.com/bitescout/BiteScoutAPI/internal/http/api/front"
	"github.com/bitescout/BiteScoutAPI/internal/http/respond"
	"github.com/bitescout/BiteScoutAPI/internal/logging"
	"github.com/bitescout/BiteScoutAPI/internal/models"
	"github.com/bitescout/BiteScoutAPI/internal/notifications"
	"github.com/bitescout/BiteScoutAPI/internal/realtime"
	"github.com/bitescout/BiteScoutAPI/internal/security"
	"github.com/bitescout/BiteScoutAPI/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateUserParams holds inputs for bootstrapping an account from the CLI.
type CreateUserParams struct {
	Username string
	Password string
	Role     models.Role
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	appCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := openDatabase(appCfg.Database)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// CreateUser migrates the database and inserts an account, typically the first root.
func CreateUser(ctx context.Context, cfg config.AppConfig, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, fmt.Errorf("app: username is required")
	}
	role := params.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.User{}, fmt.Errorf("app: invalid role %q", role)
	}
	hash, err := security.HashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}

	appCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return models.User{}, err
	}
	conn, err := openDatabase(appCfg.Database)
	if err != nil {
		return models.User{}, err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return models.User{}, errMigrate
	}
	user := models.User{
		ID:       models.NewID(),
		Username: username,
		Password: hash,
		Role:     role,
	}
	if errCreate := conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if db.IsDuplicateKey(errCreate) {
			return models.User{}, fmt.Errorf("app: user %q already exists", username)
		}
		return models.User{}, fmt.Errorf("app: create user: %w", errCreate)
	}
	return user, nil
}

// RunServer boots the HTTP and websocket server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	if !config.ConfigExists(configPath) {
		log.Warnf("config file %s not found, using defaults and environment", configPath)
	}

	conn, err := openDatabase(appCfg.Database)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	hub := realtime.NewHub()
	publisher, closeBackplane := startBackplane(ctx, appCfg.Redis, hub)
	defer closeBackplane()

	inbox := notifications.NewStore(conn)
	accessService := access.NewService(conn, notifications.NewNotifier(inbox, publisher))
	notifications.NewRetentionCleaner(conn).Start(ctx)

	engine := buildEngine(appCfg, conn, hub, accessService, inbox)
	server := &http.Server{
		Addr:              appCfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: appCfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (config=%s)", appCfg.Server.Addr, configPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			serveErr <- errServe
		}
		close(serveErr)
	}()

	select {
	case errServe := <-serveErr:
		hub.CloseAll()
		return errServe
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	hub.CloseAll()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return db.Open(cfg.DSN, db.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

// startBackplane returns the publisher notifications flow through. Without a
// redis address the hub delivers in-process only.
func startBackplane(ctx context.Context, cfg config.RedisConfig, hub *realtime.Hub) (notifications.Publisher, func()) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return hub, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	backplane := realtime.NewRedisBackplane(client, cfg.Channel, hub)
	go func() {
		if errRun := backplane.Run(ctx); errRun != nil && ctx.Err() == nil {
			log.WithError(errRun).Error("redis backplane stopped")
		}
	}()
	log.Infof("redis backplane enabled (addr=%s channel=%s)", cfg.Addr, cfg.Channel)
	return backplane, func() { _ = client.Close() }
}

func buildEngine(appCfg config.Config, conn *gorm.DB, hub *realtime.Hub, accessService *access.Service, inbox *notifications.Store) *gin.Engine {
	if mode := strings.TrimSpace(appCfg.Server.Mode); mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	if errProxies := engine.SetTrustedProxies(appCfg.Server.TrustedProxies); errProxies != nil {
		log.WithError(errProxies).Warn("invalid trusted proxies, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(apihttp.Recovery(), apihttp.RequestLogger())

	var limiter *apihttp.RateLimiter
	if appCfg.RateLimit.Enabled {
		limiter = apihttp.NewRateLimiter(appCfg.RateLimit.RequestsPerSecond, appCfg.RateLimit.Burst)
	}
	wsHandler := realtime.NewHandler(hub, realtime.HandlerConfig{
		JWTSecret:        appCfg.JWT.Secret,
		RequireToken:     appCfg.Realtime.RequireToken,
		HandshakeTimeout: appCfg.Realtime.HandshakeTimeout,
		WriteTimeout:     appCfg.Realtime.WriteTimeout,
		PingInterval:     appCfg.Realtime.PingInterval,
		PongWait:         appCfg.Realtime.PingInterval * 2,
		SendBuffer:       appCfg.Realtime.SendBuffer,
		AllowedOrigins:   appCfg.Realtime.AllowedOrigins,
	})

	front.RegisterFrontRoutes(engine, front.Deps{
		DB:            conn,
		JWT:           appCfg.JWT,
		Access:        accessService,
		Notifications: inbox,
		RateLimiter:   limiter,
		Realtime:      wsHandler.Serve,
	})
	admin.RegisterAdminRoutes(engine, conn, appCfg.JWT, hub)
	engine.NoRoute(func(c *gin.Context) {
		respond.Error(c, apierror.NotFound("route not found"))
	})
	return engine
}
