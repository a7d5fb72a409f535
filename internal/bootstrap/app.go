package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"promptchat/internal/ai"
	"promptchat/internal/config"
	"promptchat/internal/model"
	"promptchat/internal/pkg/logger"
	mysqlClient "promptchat/internal/platform/mysql"
	rabbitmqClient "promptchat/internal/platform/rabbitmq"
	redisClient "promptchat/internal/platform/redis"
	"promptchat/internal/repository"
	"promptchat/internal/worker"
)

type App struct {
	Config         *config.Config
	Log            *zap.Logger
	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	EventPublisher *rabbitmqClient.EventPublisher
	Answerer       *ai.AnswerClient
	EventWorker    *worker.EventAuditWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env == "prod")
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Chat{}, &model.Message{}, &model.ChatEvent{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	eventRepo := repository.NewEventRepository(mysqlDB)
	eventWorker := worker.NewEventAuditWorker(mqConn, eventRepo, cfg.RabbitMQ.ChatEventQueue, log)
	if err := eventWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event worker failed: %w", err)
	}

	return &App{
		Config:         cfg,
		Log:            log,
		MySQL:          mysqlDB,
		Redis:          redisCli,
		MQConn:         mqConn,
		EventPublisher: rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.ChatEventQueue),
		Answerer: ai.NewAnswerClient(ai.Config{
			BaseURL: cfg.Answer.BaseURL,
			APIKey:  cfg.Answer.APIKey,
			Model:   cfg.Answer.Model,
		}),
		EventWorker: eventWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
