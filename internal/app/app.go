package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/config"
	"github.com/reset980reset980/write0917/internal/delivery/httpd"
	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service"
	"github.com/reset980reset980/write0917/internal/service/integration"
	"github.com/reset980reset980/write0917/internal/session"
)

// SetupMessage is shown while the database settings are missing.
const SetupMessage = "데이터베이스가 설정되지 않았습니다. config/config.yaml 또는 " +
	"DATABASE_HOST, DATABASE_USER, DATABASE_NAME 환경 변수를 설정한 뒤 서버를 다시 시작하세요."

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	db        *sql.DB
	redis     *redis.Client
	publisher integration.EventPublisher
	sessions  *session.Manager
}

// New builds the application. A nil db with the postgres driver starts the
// service in setup-required mode.
func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	setupMessage := ""
	var (
		essayRepo   repository.EssayRepository
		commentRepo repository.CommentRepository
		pinger      repository.Pinger
	)
	if db != nil {
		pinger = repository.NewPostgresRepository(db, log)
		essayRepo = repository.NewEssayRepository(db, log)
		commentRepo = repository.NewCommentRepository(db, log)
	} else {
		if cfg.Database.Driver != config.DriverMemory {
			setupMessage = SetupMessage
			log.Warn().Msg("Storage is not configured, starting in setup mode")
		}
		store := repository.NewMemoryStore()
		essayRepo = store.Essays()
		commentRepo = store.Comments()
	}

	redisClient := newRedis(cfg.Redis, log)
	var (
		likedRepo   repository.LikedRepository
		rateLimiter repository.RateLimitRepository
	)
	if redisClient != nil {
		likedRepo = repository.NewRedisLikedRepository(redisClient)
		rateLimiter = repository.NewRedisRateLimitRepository(redisClient)
	} else {
		likedRepo = repository.NewMemoryLikedRepository()
		rateLimiter = repository.NewMemoryRateLimitRepository()
	}

	publisher := integration.NewNoopPublisher()
	if cfg.RabbitMQ.Enabled {
		rabbit, err := integration.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create RabbitMQ publisher")
			// Events are best-effort; keep serving without them.
		} else {
			publisher = rabbit
		}
	}

	archive := integration.NewNoopArchive()
	if cfg.Archive.Enabled {
		minioArchive, err := integration.NewMinIOArchive(
			cfg.Archive.Endpoint,
			cfg.Archive.AccessKey,
			cfg.Archive.SecretKey,
			cfg.Archive.Bucket,
			cfg.Archive.UseSSL,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create MinIO archive")
		} else {
			archive = minioArchive
		}
	}

	aiClient := integration.NewGeminiClient(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.APIKey, cfg.AI.Timeout, log)
	if cfg.AI.APIKey == "" {
		log.Warn().Msg("AI API key is not set, topic suggestions are disabled")
	}

	essayService := service.NewEssayService(essayRepo, publisher, archive, log)
	commentService := service.NewCommentService(commentRepo, essayRepo, log)
	topicService := service.NewTopicService(aiClient, rateLimiter, cfg.AI.RateLimit, cfg.AI.RateWindow, log)
	authService, err := service.NewAuthService(cfg.Auth.TeacherPassword, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(session.Deps{
		Essays:      essayService,
		Comments:    commentService,
		Auth:        authService,
		Topics:      topicService,
		Liked:       likedRepo,
		CallTimeout: cfg.Session.CallTimeout,
		Logger:      log,
	}, cfg.Session.IdleTimeout, setupMessage)

	handler := httpd.NewHandler(
		essayService,
		commentService,
		authService,
		topicService,
		sessions,
		pinger,
		setupMessage,
		log,
	)

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics)
	}
	if cfg.Server.RequestTimeout > 0 {
		router.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	router.Use(middleware.OptionalTeacher(authService))

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
		sessions:  sessions,
	}, nil
}

// newRedis returns nil when Redis is disabled or unreachable; callers fall
// back to in-memory state.
func newRedis(cfg config.RedisConfig, log zerolog.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("address", cfg.Address).Msg("Failed to connect to Redis, using in-memory state")
		_ = client.Close()
		return nil
	}

	log.Info().Str("address", cfg.Address).Msg("Redis connection established")
	return client
}

func (a *App) Run() error {
	a.sessions.Start(a.config.Session.CleanupInterval)
	a.logger.Info().Msgf("Starting write0917 on %s", a.config.Server.Address)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down write0917...")

	err := a.server.Shutdown(ctx)

	a.sessions.Stop()

	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return err
}
