package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"aria-chat/internal/ai"
	"aria-chat/internal/app"
	"aria-chat/internal/cache"
	"aria-chat/internal/config"
	"aria-chat/internal/identity"
	"aria-chat/internal/notify"
	"aria-chat/internal/platform/database"
	rabbitmqClient "aria-chat/internal/platform/rabbitmq"
	redisClient "aria-chat/internal/platform/redis"
	"aria-chat/internal/repository"
	"aria-chat/internal/storage"
	"aria-chat/internal/store"
	"aria-chat/internal/worker"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Storage storage.Storage

	Auth  *app.AuthService
	Gate  *identity.Gate
	OAuth *identity.OAuthProvider

	ChatViews  *app.ViewRegistry[*app.ChatController]
	AdminViews *app.ViewRegistry[*app.DocumentController]

	MessageWorker  *worker.MessagePersistWorker
	DocumentWorker *worker.DocumentProcessWorker
	InlineJobs     *worker.InlineJobRunner

	StartedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithConfig connects every configured dependency and wires the view
// registries. Redis, RabbitMQ and object storage are optional.
func NewWithConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	dsn := ""
	switch cfg.Database.Driver {
	case "postgres":
		dsn = cfg.PostgresDSN()
	case "mysql":
		dsn = cfg.MySQLDSN()
	}
	db, err := database.New(ctx, cfg.Database, dsn)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if cfg.RabbitMQ.URL != "" {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			return nil, err
		}
	}
	if a.Storage, err = newStorage(ctx, cfg.Storage); err != nil {
		return nil, err
	}

	rows := store.NewGormStore(db)
	sessionRepo := repository.NewSessionRepository(rows)
	messageRepo := repository.NewMessageRepository(rows)
	documentRepo := repository.NewDocumentRepository(rows)
	userRepo := repository.NewUserRepository(db)

	a.Auth = app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		cfg.Auth.AllowRegister,
	)
	a.OAuth = identity.NewOAuthProvider(identity.OAuthConfig{
		Domain:       cfg.Identity.Domain,
		ClientID:     cfg.Identity.ClientID,
		ClientSecret: cfg.Identity.ClientSecret,
		CallbackURL:  cfg.Identity.CallbackURL,
		ReturnToURL:  cfg.Identity.ReturnToURL,
	})
	var oauthVerifier identity.Verifier
	if a.OAuth.Enabled() {
		oauthVerifier = a.OAuth
	}
	a.Gate = identity.NewGate(identity.NewLocalVerifier(cfg.Auth.JWTSecret), oauthVerifier)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	var messagePublisher app.AsyncMessagePublisher = app.NewDirectMessagePublisher(messageRepo)
	var jobs app.DocumentJobPublisher
	processor := worker.NewDocumentProcessor(documentRepo, a.Storage, log)
	if a.MQConn != nil {
		messagePublisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, log)
		if err := a.MessageWorker.Start(runCtx); err != nil {
			return nil, fmt.Errorf("start message worker failed: %w", err)
		}
		if cfg.Documents.ProcessingEnabled {
			jobs = rabbitmqClient.NewDocumentJobPublisher(a.MQConn, cfg.RabbitMQ.DocumentProcessQueue)
			a.DocumentWorker = worker.NewDocumentProcessWorker(a.MQConn, processor, cfg.RabbitMQ.DocumentProcessQueue, log)
			if err := a.DocumentWorker.Start(runCtx); err != nil {
				return nil, fmt.Errorf("start document worker failed: %w", err)
			}
		}
	} else if cfg.Documents.ProcessingEnabled {
		a.InlineJobs = worker.NewInlineJobRunner(runCtx, processor)
		jobs = a.InlineJobs
	}

	var history app.HistoryCache
	if a.Redis != nil {
		history = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	var responder app.Responder = app.SimulatedResponder{}
	if cfg.LLM.Enabled {
		client, err := ai.NewClient(ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model})
		if err != nil {
			return nil, fmt.Errorf("init llm client failed: %w", err)
		}
		responder = app.NewLLMResponder(client, messageRepo, cfg.LLM.MaxContextMessage)
	}

	idleTTL := time.Duration(cfg.Views.IdleTTLSeconds) * time.Second
	a.ChatViews = app.NewViewRegistry("chat", idleTTL, func(viewID string) *app.ChatController {
		return app.NewChatController(runCtx, viewID, app.ChatDeps{
			Sessions:  sessionRepo,
			Messages:  messageRepo,
			Publisher: messagePublisher,
			History:   history,
			Responder: responder,
			Notifier:  a.newQueue(viewID),
			Logger:    log,
			Options: app.ChatOptions{
				NewChatTitle:  cfg.Chat.NewChatTitle,
				TitleMaxRunes: cfg.Chat.TitleMaxRunes,
				ReplyDelay:    time.Duration(cfg.Chat.ReplyDelayMS) * time.Millisecond,
			},
		})
	})
	a.AdminViews = app.NewViewRegistry("admin", idleTTL, func(viewID string) *app.DocumentController {
		return app.NewDocumentController(viewID, app.DocumentDeps{
			Documents: documentRepo,
			Storage:   a.Storage,
			Jobs:      jobs,
			Notifier:  a.newQueue(viewID),
			Logger:    log,
			Options: app.UploadOptions{
				AllowedFileTypes: cfg.Documents.AllowedFileTypes,
				MaxFileSize:      cfg.Documents.MaxFileSize,
			},
		})
	})

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.ChatViews.Run(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.AdminViews.Run(runCtx)
	}()

	log.Info().
		Str("db", cfg.Database.Driver).
		Bool("redis", a.Redis != nil).
		Bool("rabbitmq", a.MQConn != nil).
		Str("storage", cfg.Storage.Driver).
		Bool("llm", cfg.LLM.Enabled).
		Bool("oauth", a.OAuth.Enabled()).
		Msg("application wired")

	ok = true
	return a, nil
}

func (a *App) newQueue(viewID string) notify.Queue {
	ttl := time.Duration(a.Config.Notify.TTLSeconds) * time.Second
	if a.Redis != nil {
		return notify.NewRedisQueue(a.Redis, viewID, ttl, a.Config.Notify.Limit)
	}
	return notify.NewMemoryQueue(ttl, a.Config.Notify.Limit)
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case "local":
		local, err := storage.NewLocalStorage(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		remote, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, nil
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.InlineJobs != nil {
		a.InlineJobs.Close()
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.DocumentWorker != nil {
		a.DocumentWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
