package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreyxaxa/order-relay/config"
	amqpctrl "github.com/andreyxaxa/order-relay/internal/controller/amqp"
	"github.com/andreyxaxa/order-relay/internal/controller/restapi"
	"github.com/andreyxaxa/order-relay/internal/controller/worker/relay"
	"github.com/andreyxaxa/order-relay/internal/controller/worker/scheduled"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/internal/infrastructure/email"
	infrakafka "github.com/andreyxaxa/order-relay/internal/infrastructure/kafka"
	"github.com/andreyxaxa/order-relay/internal/infrastructure/productsource"
	infrarabbitmq "github.com/andreyxaxa/order-relay/internal/infrastructure/rabbitmq"
	"github.com/andreyxaxa/order-relay/internal/repo"
	"github.com/andreyxaxa/order-relay/internal/repo/persistent"
	"github.com/andreyxaxa/order-relay/internal/usecase/export"
	"github.com/andreyxaxa/order-relay/internal/usecase/idempotency"
	"github.com/andreyxaxa/order-relay/internal/usecase/notification"
	"github.com/andreyxaxa/order-relay/internal/usecase/orderevent"
	"github.com/andreyxaxa/order-relay/pkg/dynamodb"
	"github.com/andreyxaxa/order-relay/pkg/httpserver"
	"github.com/andreyxaxa/order-relay/pkg/kafka/producer"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/metrics"
	"github.com/andreyxaxa/order-relay/pkg/postgres"
	"github.com/andreyxaxa/order-relay/pkg/rabbitmq"
	"github.com/andreyxaxa/order-relay/pkg/redis"
	"github.com/andreyxaxa/order-relay/pkg/s3client"
	goredis "github.com/redis/go-redis/v9"
)

type worker interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type namedWorker struct {
	name            string
	w               worker
	shutdownTimeout time.Duration
}

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)
	defer func() { _ = l.Sync() }()

	// Metrics
	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	// Repository

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// redis; an unreachable server only degrades the queue to memory
	var redisClient goredis.UniversalClient
	if cfg.Redis.URL != "" {
		rdb, err := redis.New(cfg.Redis.URL, redis.PoolSize(cfg.Redis.PoolSize))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - redis.New: %w", err))
		}
		defer rdb.Close()

		err = rdb.WaitReady(ctx)
		if err != nil {
			l.Warn("app - Run - redis not ready, retry queue starts degraded: %v", err)
		}

		redisClient = rdb.Client
	} else {
		l.Warn("app - Run - REDIS_URL is empty, retry queue is memory-only")
	}

	retryQueue := persistent.NewRetryQueue(redisClient, cfg.Redis.QueueKey, l)
	metrics.SetQueueDepthFunc(func() int64 {
		depthCtx, depthCancel := context.WithTimeout(context.Background(), time.Second)
		defer depthCancel()

		return retryQueue.Len(depthCtx)
	})

	idempotencyRepo, err := newIdempotencyRepo(ctx, cfg, pg)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - newIdempotencyRepo: %w", err))
	}

	// Use-Case
	orderEventUseCase := orderevent.New(retryQueue, persistent.NewOrderRepo(pg), l)
	idempotencyGuard := idempotency.New(idempotencyRepo, l)

	sender, err := email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.Timeout)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - email.NewSender: %w", err))
	}
	notificationUseCase := notification.New(sender)

	brokerURL := rabbitmq.URL(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.VHost)

	var workers []namedWorker

	// Publish-then-Notify Worker
	if cfg.RunsRelay() {
		publisher, err := newPublisher(ctx, cfg, brokerURL, l)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - newPublisher: %w", err))
		}

		workers = append(workers, namedWorker{
			name: "relay",
			w: relay.New(
				retryQueue,
				publisher,
				notificationUseCase,
				l,
				cfg.RabbitMQ.RoutingKey,
				cfg.RelayWorker.IdleDelay,
				cfg.RelayWorker.RetryDelay,
				cfg.RelayWorker.ProcessTimeout,
			),
			shutdownTimeout: cfg.RelayWorker.ShutdownTimeout,
		})
	}

	// Broker Consumer Worker
	if cfg.RunsConsumer() {
		workers = append(workers, namedWorker{
			name: "consumer",
			w: amqpctrl.New(
				notificationUseCase,
				subscribeFunc(cfg, brokerURL),
				l,
				cfg.ConsumerWorker.ProcessTimeout,
				cfg.ConsumerWorker.Workers,
			),
			shutdownTimeout: cfg.ConsumerWorker.ShutdownTimeout,
		})
	}

	// Scheduled Export Worker
	if cfg.Export.Enabled {
		exportWorker, err := newExportWorker(ctx, cfg, l)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - newExportWorker: %w", err))
		}

		workers = append(workers, namedWorker{
			name:            "export",
			w:               exportWorker,
			shutdownTimeout: cfg.Export.ShutdownTimeout,
		})
	}

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, orderEventUseCase, idempotencyGuard, l, cfg.Metrics.Enabled)

	// Start Components
	for _, nw := range workers {
		err = nw.w.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - %s.Start: %w", nw.name, err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	for _, nw := range workers {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, nw.shutdownTimeout)
		err = nw.w.Shutdown(shutdownCtx)
		shutdownCancel()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - %s.Shutdown: %w", nw.name, err))
		}
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, brokerURL string, l logger.Interface) (infrastructure.EventPublisher, error) {
	if cfg.App.PublisherDriver == config.PublisherDriverKafka {
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
		if err != nil {
			return nil, fmt.Errorf("producer.New: %w", err)
		}

		return infrakafka.NewEventPublisher(kafkaProducer, cfg.Kafka.Topic, l), nil
	}

	// connects lazily on the first publish
	return infrarabbitmq.NewEventPublisher(
		brokerURL,
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.Queue,
		cfg.RabbitMQ.RoutingKey,
		cfg.RabbitMQ.ProbeTimeout,
		l,
	), nil
}

func subscribeFunc(cfg *config.Config, brokerURL string) amqpctrl.SubscribeFunc {
	return func(ctx context.Context) (infrastructure.Subscription, error) {
		sub, err := infrarabbitmq.Subscribe(
			ctx,
			brokerURL,
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.Queue,
			cfg.RabbitMQ.RoutingKey,
			cfg.App.Name,
			cfg.ConsumerWorker.Prefetch,
			rabbitmq.GracePeriod(cfg.ConsumerWorker.GracePeriod),
			rabbitmq.ConnAttempts(cfg.ConsumerWorker.ConnAttempts),
			rabbitmq.ConnTimeout(cfg.ConsumerWorker.ConnDelay),
			rabbitmq.ProbeTimeout(cfg.RabbitMQ.ProbeTimeout),
		)
		if err != nil {
			return nil, err
		}

		return sub, nil
	}
}

func newIdempotencyRepo(ctx context.Context, cfg *config.Config, pg *postgres.Postgres) (repo.IdempotencyRepo, error) {
	if cfg.Idempotency.Driver == config.IdempotencyDriverDynamoDB {
		client, err := dynamodb.New(ctx, cfg.DynamoDB.Endpoint, cfg.DynamoDB.Region, cfg.DynamoDB.AccessKey, cfg.DynamoDB.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("dynamodb.New: %w", err)
		}

		return persistent.NewIdempotencyDynamoRepo(client, cfg.DynamoDB.Table), nil
	}

	return persistent.NewIdempotencyPostgresRepo(pg), nil
}

func newExportWorker(ctx context.Context, cfg *config.Config, l logger.Interface) (*scheduled.Worker, error) {
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()

	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, s3client.Bucket(cfg.S3.Bucket))
	if err != nil {
		return nil, fmt.Errorf("s3client.New: %w", err)
	}

	source := productsource.New(
		cfg.Export.ProductsURL,
		cfg.Export.HealthURL,
		cfg.Export.RequestTimeout,
		cfg.Export.BreakerTripAfter,
		cfg.Export.BreakerOpenFor,
	)

	job := export.NewProductExport(source, persistent.NewExportRepo(s3c, cfg.S3.Bucket), cfg.Export.KeyPrefix, l)

	opts := []scheduled.Option{
		scheduled.Interval(cfg.Export.Interval()),
		scheduled.InitialDelay(cfg.Export.InitialDelay()),
		scheduled.MaxRetryAttempts(cfg.Export.MaxRetryAttempts),
		scheduled.RetryDelay(cfg.Export.RetryDelay()),
		scheduled.MaxRetryDelay(cfg.Export.MaxRetryDelay()),
		scheduled.ContinueOnError(cfg.Export.ContinueOnError),
	}

	if cfg.Export.HealthURL != "" {
		opts = append(opts, scheduled.AvailabilityCheck(job, cfg.Export.CheckTimeout))
	}

	return scheduled.New(job, l, opts...), nil
}
