package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/fmea-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/database"
	"github.com/redmonkez12/fmea-api/internal/email"
	"github.com/redmonkez12/fmea-api/internal/equipment"
	httpServer "github.com/redmonkez12/fmea-api/internal/http"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/profile"
	"github.com/redmonkez12/fmea-api/internal/ratelimit"
	"github.com/redmonkez12/fmea-api/internal/storage"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// @title           FMEA Tracker API
// @version         1.0
// @description     Accounts, sessions and the role-gated equipment registry of the FMEA tracker.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token. Browsers use the session cookie instead.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)

	// The pool opens on the first query, so a database outage at boot does
	// not keep the process down.
	db := database.NewHandle(cfg.Database.ConnectionString(), cfg.Database.Migrate, logger)
	defer db.Close()

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	tokenService, err := auth.NewTokenService(cfg.Auth.TokenFormat, cfg.Auth.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	avatars, uploads, err := initAvatars(context.Background(), cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize avatar storage: %w", err)
	}

	// Repositories
	userRepo := user.NewRepository(db)
	equipmentRepo := equipment.NewRepository(db)
	sessionRepo := auth.NewSessionRepository(redisClient)
	passwordResetRepo := auth.NewPasswordResetRepository(redisClient, cfg.Auth.PasswordResetTTL)

	rateLimiter := ratelimit.NewLimiter(redisClient, ratelimit.DefaultConfig)
	emailService := email.NewService(cfg.Email, cfg.Auth.VerificationTTL, cfg.Auth.PasswordResetTTL)

	authService := auth.NewService(
		userRepo,
		auth.NewPasswordHasher(auth.DefaultArgon2Params),
		tokenService,
		emailService,
		passwordResetRepo,
		sessionRepo,
		avatars,
		logger,
		auth.Options{
			SessionDuration:      cfg.Auth.SessionDuration,
			OTPTTL:               cfg.Auth.OTPTTL,
			VerificationTTL:      cfg.Auth.VerificationTTL,
			RequireVerifiedLogin: cfg.Auth.RequireVerifiedLogin,
		},
	)
	profileService := profile.NewService(userRepo, avatars, logger)

	secureCookies := !cfg.Server.IsDevelopment()
	handlers := httpServer.Handlers{
		Auth:      auth.NewHandler(authService, rateLimiter, cfg.Auth.CookieName, secureCookies),
		Profile:   profile.NewHandler(profileService, uploads),
		Equipment: equipment.NewHandler(equipmentRepo),
	}
	authMiddleware := auth.NewMiddleware(tokenService, sessionRepo, cfg.Auth.CookieName)

	router := httpServer.NewRouter(cfg, handlers, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// initAvatars wires the upload area and, when configured, the S3 image host.
// Without an image host only external avatar URLs are accepted.
func initAvatars(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (*storage.AvatarService, *storage.TempStore, error) {
	temp, err := storage.NewTempStore(cfg.UploadTmpDir)
	if err != nil {
		return nil, nil, err
	}

	var objects storage.ObjectStore
	if cfg.Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PublicURL: cfg.PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		objects = s3Store
	} else {
		logger.Warn("image host not configured, avatar uploads are disabled")
	}

	return storage.NewAvatarService(temp, objects, logger), temp, nil
}
