package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/handler"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/notify"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/worker"
	"github.com/clipforge/api/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Server.LogLevel)

	if err := cfg.Storage.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create storage directories")
	}

	// Redis client backs the row store, rate limiter, and notifier.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	transformer := media.NewFFmpeg()
	if !transformer.Available() {
		log.Warn().Msg("ffmpeg not found on PATH, transforms will fail")
	}

	st := store.NewRedisStore(redisClient)
	notifier := notify.New(redisClient, cfg.Notify.Channel)

	jobService := service.NewJobService(st, asynqClient, notifier, cfg.Storage)
	videoService := service.NewVideoService(st, transformer, cfg.Storage)

	jobHandler := handler.NewJobHandler(jobService, videoService, validate, cfg.Storage.OverlaysDir, cfg.Storage.WatermarksDir)
	videoHandler := handler.NewVideoHandler(videoService, jobService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    500 * 1024 * 1024, // 500MB uploads
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	submitLimit := rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin)
	uploadLimit := rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour)

	// Upload & metadata
	app.Post("/upload", uploadLimit, videoHandler.Upload)
	app.Get("/videos", videoHandler.List)
	app.Get("/videos/:id", videoHandler.Get)
	app.Get("/videos/:id/download", videoHandler.Download)
	app.Get("/videos/:id/qualities", videoHandler.Qualities)
	app.Get("/videos/:id/qualities/:quality", videoHandler.DownloadQuality)
	app.Get("/videos/:id/qualities/:quality/info", videoHandler.QualityInfo)
	app.Get("/videos/:id/trimmed", videoHandler.Trimmed)
	app.Get("/videos/:id/overlays", videoHandler.Overlays)
	app.Get("/videos/:id/watermarks", videoHandler.Watermarks)
	app.Get("/videos/:id/jobs", videoHandler.Jobs)
	app.Get("/trimmed/:id/download", videoHandler.DownloadTrimmed)

	// Async job submission
	app.Post("/async/upload", uploadLimit, videoHandler.UploadAsync)
	app.Post("/async/trim", submitLimit, jobHandler.Trim)
	app.Post("/async/overlays/text", submitLimit, jobHandler.TextOverlay)
	app.Post("/async/overlays/image", submitLimit, jobHandler.ImageOverlay)
	app.Post("/async/overlays/video", submitLimit, jobHandler.VideoOverlay)
	app.Post("/async/watermark", submitLimit, jobHandler.Watermark)
	app.Post("/qualities/convert", submitLimit, jobHandler.QualityConvert)

	// Status & results
	app.Get("/status/:jobId", jobHandler.Status)
	app.Get("/result/:jobId", jobHandler.Result)

	go startWorkerServer(cfg, jobService, st, transformer)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func startWorkerServer(cfg *config.Config, jobService *service.JobService, st store.Store, transformer media.Transformer) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				service.QueueVideoProcessing: 10,
			},
		},
	)

	executor := worker.NewExecutor(jobService, st, transformer, cfg.Storage)

	mux := asynq.NewServeMux()
	executor.Register(mux)

	if err := srv.Run(mux); err != nil {
		log.Error().Err(err).Msg("worker server error")
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
