package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Khuzaim123/nomadnet-messaging/internal/auth"
	"github.com/Khuzaim123/nomadnet-messaging/internal/checkin"
	appConfig "github.com/Khuzaim123/nomadnet-messaging/internal/config"
	configHandler "github.com/Khuzaim123/nomadnet-messaging/internal/config/handler"
	conversationsHandler "github.com/Khuzaim123/nomadnet-messaging/internal/conversations/handler"
	conversationsRepo "github.com/Khuzaim123/nomadnet-messaging/internal/conversations/repo"
	mwLogger "github.com/Khuzaim123/nomadnet-messaging/internal/http-server/middleware/logger"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/handlers/slogpretty"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
	"github.com/Khuzaim123/nomadnet-messaging/internal/marketplace"
	messagesHandler "github.com/Khuzaim123/nomadnet-messaging/internal/messages/handler"
	messagesRepo "github.com/Khuzaim123/nomadnet-messaging/internal/messages/repo"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messaging"
	"github.com/Khuzaim123/nomadnet-messaging/internal/presence"
	"github.com/Khuzaim123/nomadnet-messaging/internal/repair"
	storage "github.com/Khuzaim123/nomadnet-messaging/internal/storage/postgres"
	"github.com/Khuzaim123/nomadnet-messaging/internal/uploads"
	uploadsHandler "github.com/Khuzaim123/nomadnet-messaging/internal/uploads/handler"
	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
	usersRepo "github.com/Khuzaim123/nomadnet-messaging/internal/users/repo"
	ws "github.com/Khuzaim123/nomadnet-messaging/internal/ws/handler"
	"github.com/Khuzaim123/nomadnet-messaging/internal/ws/hub"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting nomadnet-messaging", slog.String("env", cfg.Env))

	ctx := context.Background()

	db, err := storage.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	var directory users.Directory = usersRepo.New()
	if cfg.Env == envLocal {
		directory = usersRepo.NewPermissive()
	}
	convRepo := conversationsRepo.New(db, directory)
	msgRepo := messagesRepo.New(db)
	listings := marketplace.NewStaticLister()
	checkins := checkin.NewMemoryService()

	h := hub.NewHub()
	go h.Run()

	var pres *presence.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", sl.Err(err))
			os.Exit(1)
		}
		pres = presence.New(rdb)
	}

	service := messaging.New(
		convRepo,
		msgRepo,
		directory,
		listings,
		checkins,
		h,
		messaging.Limits{
			DefaultPageLimit: cfg.Messages.DefaultPageLimit,
			MaxPageLimit:     cfg.Messages.MaxPageLimit,
			MaxContentLength: cfg.Messages.MaxContentLength,
		},
		log,
	)

	if cfg.Redis.Addr != "" {
		go runRepairWorker(cfg, convRepo, log)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	ch := conversationsHandler.New(service, log)
	mh := messagesHandler.New(service, log)

	router.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("user_id")
		if raw == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  "user_id",
			Value: raw,
			Path:  "/",
		})

		w.WriteHeader(http.StatusOK)
	})

	router.Get("/config", configHandler.New(cfg, log).GetConfig())

	router.Group(func(r chi.Router) {
		r.Use(auth.WithUser)

		r.Post("/conversations", ch.CreateOrGet())
		r.Get("/conversations", ch.List())
		r.Get("/conversations/{conversationId}", ch.Get())
		r.Put("/conversations/{conversationId}/archive", ch.ToggleArchive())
		r.Put("/conversations/{conversationId}/read", ch.MarkRead())
		r.Delete("/conversations/{conversationId}", ch.Clear())

		r.Post("/messages", mh.Send())
		r.Get("/messages/unread/count", mh.UnreadCount())
		r.Get("/messages/{conversationId}", mh.List())
		r.Put("/messages/{messageId}/read", mh.MarkRead())
		r.Put("/messages/{messageId}", mh.Edit())
		r.Delete("/messages/{messageId}", mh.Delete())

		r.Get("/ws", ws.WSHandler(h, service, pres, log))

		if cfg.S3.Bucket != "" {
			uh := uploadsHandler.New(newUploadService(ctx, cfg, log), log)

			r.Post("/uploads/presign-upload", uh.PresignUpload())
			r.Post("/uploads/presign-download", uh.PresignDownload())
		}
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func newUploadService(ctx context.Context, cfg *appConfig.Config, log *slog.Logger) uploads.Service {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		),
	)
	if err != nil {
		log.Error("failed to load aws config", sl.Err(err))
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return uploads.NewS3Service(cfg.S3.Bucket, s3.NewPresignClient(s3Client))
}

// runRepairWorker consumes unread recount tasks and schedules a periodic
// full sweep so drifted counters converge back to the stored messages.
func runRepairWorker(cfg *appConfig.Config, convRepo *conversationsRepo.Repo, log *slog.Logger) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	scheduler := asynq.NewScheduler(redisOpt, nil)

	task, err := repair.NewUnreadRecountTask(uuid.Nil)
	if err != nil {
		log.Error("failed to build recount task", sl.Err(err))
		os.Exit(1)
	}

	if _, err := scheduler.Register(cfg.Repair.RecountSchedule, task); err != nil {
		log.Error("failed to register recount schedule", sl.Err(err))
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			log.Error("scheduler stopped", sl.Err(err))
		}
	}()

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 2})

	mux := asynq.NewServeMux()
	mux.Handle(repair.TypeUnreadRecount, repair.NewHandler(convRepo, log))

	if err := srv.Run(mux); err != nil {
		log.Error("repair worker stopped", sl.Err(err))
	}
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
