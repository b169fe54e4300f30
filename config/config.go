package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	WorkerModeRelay    = "relay"
	WorkerModeConsumer = "consumer"
	WorkerModeBoth     = "both"

	PublisherDriverRabbitMQ = "rabbitmq"
	PublisherDriverKafka    = "kafka"

	IdempotencyDriverPostgres = "postgres"
	IdempotencyDriverDynamoDB = "dynamodb"
)

type (
	Config struct {
		App            App
		HTTP           HTTP
		Log            Log
		PG             PG
		Redis          Redis
		RabbitMQ       RabbitMQ
		Kafka          Kafka
		SMTP           SMTP
		Idempotency    Idempotency
		DynamoDB       DynamoDB
		RelayWorker    RelayWorker
		ConsumerWorker ConsumerWorker
		Export         Export
		S3             S3
		Metrics        Metrics
	}

	App struct {
		Name            string `env:"APP_NAME" envDefault:"order-relay"`
		WorkerMode      string `env:"WORKER_MODE" envDefault:"relay"`
		PublisherDriver string `env:"PUBLISHER_DRIVER" envDefault:"rabbitmq"`
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	Redis struct {
		URL      string `env:"REDIS_URL"` // empty runs the retry queue in memory only
		PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
		QueueKey string `env:"RETRY_QUEUE_KEY" envDefault:"orders:retry"`
	}

	RabbitMQ struct {
		Host         string        `env:"RABBITMQ_HOST" envDefault:"localhost"`
		Port         int           `env:"RABBITMQ_PORT" envDefault:"5672"`
		VHost        string        `env:"RABBITMQ_VHOST" envDefault:"/"`
		User         string        `env:"RABBITMQ_USER" envDefault:"guest"`
		Password     string        `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
		Exchange     string        `env:"RABBITMQ_EXCHANGE" envDefault:"orders"`
		Queue        string        `env:"RABBITMQ_QUEUE" envDefault:"orders.notifications"`
		RoutingKey   string        `env:"RABBITMQ_ROUTING_KEY" envDefault:"order.created"`
		ProbeTimeout time.Duration `env:"RABBITMQ_PROBE_TIMEOUT" envDefault:"3s"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS"`
		Topic   string   `env:"KAFKA_TOPIC" envDefault:"orders"`
	}

	SMTP struct {
		Host     string        `env:"SMTP_HOST" envDefault:"localhost"`
		Port     int           `env:"SMTP_PORT" envDefault:"25"`
		Username string        `env:"SMTP_USERNAME"`
		Password string        `env:"SMTP_PASSWORD"`
		From     string        `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
		Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"15s"`
	}

	Idempotency struct {
		Driver string `env:"IDEMPOTENCY_DRIVER" envDefault:"postgres"`
	}

	DynamoDB struct {
		Endpoint  string `env:"DYNAMODB_ENDPOINT"`
		Region    string `env:"DYNAMODB_REGION" envDefault:"us-east-1"`
		Table     string `env:"DYNAMODB_IDEMPOTENCY_TABLE" envDefault:"idempotency_keys"`
		AccessKey string `env:"DYNAMODB_ACCESS_KEY"`
		SecretKey string `env:"DYNAMODB_SECRET_KEY"`
	}

	RelayWorker struct {
		IdleDelay       time.Duration `env:"RELAY_WORKER_IDLE_DELAY" envDefault:"2s"`
		RetryDelay      time.Duration `env:"RELAY_WORKER_RETRY_DELAY" envDefault:"5s"`
		ProcessTimeout  time.Duration `env:"RELAY_WORKER_PROCESS_TIMEOUT" envDefault:"30s"`
		ShutdownTimeout time.Duration `env:"RELAY_WORKER_SHUTDOWN_TIMEOUT" envDefault:"35s"`
	}

	ConsumerWorker struct {
		GracePeriod     time.Duration `env:"CONSUMER_GRACE_PERIOD" envDefault:"5s"`
		ConnAttempts    int           `env:"CONSUMER_CONN_ATTEMPTS" envDefault:"10"`
		ConnDelay       time.Duration `env:"CONSUMER_CONN_DELAY" envDefault:"5s"`
		Prefetch        int           `env:"CONSUMER_PREFETCH" envDefault:"10"`
		Workers         int           `env:"CONSUMER_WORKERS" envDefault:"4"`
		ProcessTimeout  time.Duration `env:"CONSUMER_PROCESS_TIMEOUT" envDefault:"30s"`
		ShutdownTimeout time.Duration `env:"CONSUMER_SHUTDOWN_TIMEOUT" envDefault:"35s"`
	}

	Export struct {
		Enabled              bool          `env:"EXPORT_ENABLED" envDefault:"false"`
		ProductsURL          string        `env:"EXPORT_PRODUCTS_URL"`
		HealthURL            string        `env:"EXPORT_HEALTH_URL"`
		RequestTimeout       time.Duration `env:"EXPORT_REQUEST_TIMEOUT" envDefault:"30s"`
		IntervalMinutes      int           `env:"EXPORT_INTERVAL_MINUTES" envDefault:"60"`
		MaxRetryAttempts     int           `env:"EXPORT_MAX_RETRY_ATTEMPTS" envDefault:"3"`
		RetryDelaySeconds    int           `env:"EXPORT_RETRY_DELAY_SECONDS" envDefault:"30"`
		MaxRetryDelaySeconds int           `env:"EXPORT_MAX_RETRY_DELAY_SECONDS" envDefault:"600"`
		InitialDelaySeconds  int           `env:"EXPORT_INITIAL_DELAY_SECONDS" envDefault:"10"`
		ContinueOnError      bool          `env:"EXPORT_CONTINUE_ON_ERROR" envDefault:"true"`
		CheckTimeout         time.Duration `env:"EXPORT_AVAILABILITY_TIMEOUT" envDefault:"10s"`
		BreakerTripAfter     uint32        `env:"EXPORT_BREAKER_TRIP_AFTER" envDefault:"5"`
		BreakerOpenFor       time.Duration `env:"EXPORT_BREAKER_OPEN_FOR" envDefault:"1m"`
		KeyPrefix            string        `env:"EXPORT_KEY_PREFIX" envDefault:"exports/"`
		ShutdownTimeout      time.Duration `env:"EXPORT_SHUTDOWN_TIMEOUT" envDefault:"35s"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET" envDefault:"exports"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Metrics struct {
		Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.WorkerMode {
	case WorkerModeRelay, WorkerModeConsumer, WorkerModeBoth:
	default:
		return fmt.Errorf("unknown WORKER_MODE %q", c.App.WorkerMode)
	}

	switch c.App.PublisherDriver {
	case PublisherDriverRabbitMQ:
	case PublisherDriverKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for PUBLISHER_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unknown PUBLISHER_DRIVER %q", c.App.PublisherDriver)
	}

	switch c.Idempotency.Driver {
	case IdempotencyDriverPostgres, IdempotencyDriverDynamoDB:
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_DRIVER %q", c.Idempotency.Driver)
	}

	if c.Export.Enabled && c.Export.ProductsURL == "" {
		return fmt.Errorf("EXPORT_PRODUCTS_URL is required when EXPORT_ENABLED=true")
	}

	return nil
}

// RunsRelay reports whether the publish-then-notify worker should start.
func (c *Config) RunsRelay() bool {
	return c.App.WorkerMode == WorkerModeRelay || c.App.WorkerMode == WorkerModeBoth
}

// RunsConsumer reports whether the broker consumer should start.
func (c *Config) RunsConsumer() bool {
	return c.App.WorkerMode == WorkerModeConsumer || c.App.WorkerMode == WorkerModeBoth
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Interval and the other Export accessors convert the integer tunables.
func (e Export) Interval() time.Duration      { return minutes(e.IntervalMinutes) }
func (e Export) RetryDelay() time.Duration    { return seconds(e.RetryDelaySeconds) }
func (e Export) MaxRetryDelay() time.Duration { return seconds(e.MaxRetryDelaySeconds) }
func (e Export) InitialDelay() time.Duration  { return seconds(e.InitialDelaySeconds) }
