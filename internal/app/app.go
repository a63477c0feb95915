package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rifapix/rifapix/internal/config"
	"github.com/rifapix/rifapix/internal/db"
	"github.com/rifapix/rifapix/internal/gateway"
	adminapi "github.com/rifapix/rifapix/internal/http/api/admin"
	publicapi "github.com/rifapix/rifapix/internal/http/api/public"
	"github.com/rifapix/rifapix/internal/logging"
	"github.com/rifapix/rifapix/internal/models"
	"github.com/rifapix/rifapix/internal/payment"
	"github.com/rifapix/rifapix/internal/payout"
	"github.com/rifapix/rifapix/internal/referral"
	"github.com/rifapix/rifapix/internal/security"
	"github.com/rifapix/rifapix/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Options holds process-level inputs not carried by the config file.
type Options struct {
	ConfigPath string
}

// Migrate opens the database and runs schema migrations, then exits.
func Migrate(ctx context.Context, opts Options) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(opts.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// Run boots the platform: database, background jobs, and the HTTP API.
// It blocks until ctx is cancelled, then shuts the server down gracefully.
func Run(ctx context.Context, opts Options) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(opts.ConfigPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	if errSeed := seedDefaultAdmin(ctx, conn); errSeed != nil {
		return errSeed
	}

	var cache *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := cache.Ping(ctx).Err(); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, leaderboard caching disabled")
			cache = nil
		}
	}

	pixGateway := gateway.NewClient(cfg.Gateway)
	engine := referral.NewEngine(conn)
	payments := payment.NewService(conn, pixGateway, engine)
	ranking := referral.NewRanking(conn, cache)

	payout.NewScheduler(conn).Start(ctx)
	payout.NewPendingPaymentReaper(conn).Start(ctx)

	router := buildRouter(conn, cfg, payments, engine, ranking)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("server stopped")
	return nil
}

// buildRouter assembles the gin engine with both API surfaces.
func buildRouter(conn *gorm.DB, cfg *config.Config, payments *payment.Service, engine *referral.Engine, ranking *referral.Ranking) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	publicapi.RegisterPublicRoutes(router, conn, cfg.JWT, payments, engine, ranking)
	adminapi.RegisterAdminRoutes(router, conn, cfg.JWT)
	return router
}

// requestLogMiddleware logs each request with method, path, status and latency.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request handled")
	}
}

// seedDefaultAdmin creates the initial admin account when none exists.
// The password comes from ADMIN_PASSWORD, or is generated and logged once.
func seedDefaultAdmin(ctx context.Context, conn *gorm.DB) error {
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	password := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	generated := false
	if password == "" {
		raw := make([]byte, 16)
		if _, errRead := rand.Read(raw); errRead != nil {
			return errRead
		}
		password = hex.EncodeToString(raw)
		generated = true
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	admin := models.Admin{
		Username: "admin",
		Password: hash,
		Active:   true,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	if generated {
		log.Infof("seeded default admin %q with generated password %s", admin.Username, password)
	} else {
		log.Infof("seeded default admin %q", admin.Username)
	}
	return nil
}
