package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/kelseyhightower/envconfig"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	glucoseErrors "github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/metrics"
)

const (
	stageFetch  = "fetch"
	stageHandle = "handle"
	stageCommit = "commit"
)

var Module = fx.Options(
	fx.Provide(NewConfig, NewConsumer),
	fx.Invoke(func(*Consumer) {}),
)

type Config struct {
	Enabled  bool   `envconfig:"TIDEPOOL_ALERTS_KAFKA_ENABLED" default:"false"`
	Brokers  string `envconfig:"TIDEPOOL_ALERTS_KAFKA_BROKERS" default:"kafka:9092"`
	Topic    string `envconfig:"TIDEPOOL_ALERTS_KAFKA_TOPIC" default:"glucose-samples"`
	GroupId  string `envconfig:"TIDEPOOL_ALERTS_KAFKA_GROUP_ID" default:"glucose-alerts"`
	MinBytes int    `envconfig:"TIDEPOOL_ALERTS_KAFKA_MIN_BYTES" default:"1"`
	MaxBytes int    `envconfig:"TIDEPOOL_ALERTS_KAFKA_MAX_BYTES" default:"1048576"`

	RetryDelay    time.Duration `envconfig:"TIDEPOOL_ALERTS_KAFKA_RETRY_DELAY" default:"1s"`
	RetryMaxDelay time.Duration `envconfig:"TIDEPOOL_ALERTS_KAFKA_RETRY_MAX_DELAY" default:"1m"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

//go:generate mockgen -source=./events.go -destination=./test/mock_events.go -package test

// MessageReader is the subset of *kafka.Reader used by the consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs alert detection for glucose samples published to a kafka topic.
type Consumer struct {
	reader        MessageReader
	detector      alerts.Detector
	retryDelay    time.Duration
	retryMaxDelay time.Duration
	logger        *zap.SugaredLogger
}

type Params struct {
	fx.In

	Config    *Config
	Detector  alerts.Detector
	Logger    *zap.SugaredLogger
	Lifecycle fx.Lifecycle
}

// NewConsumer returns a consumer bound to the application lifecycle, or nil when ingestion
// from kafka is disabled.
func NewConsumer(p Params) (*Consumer, error) {
	if !p.Config.Enabled {
		p.Logger.Info("kafka glucose sample consumer is disabled")
		return nil, nil
	}

	brokers := strings.Split(p.Config.Brokers, ",")
	if len(brokers) == 0 || p.Config.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  p.Config.GroupId,
		Topic:    p.Config.Topic,
		MinBytes: p.Config.MinBytes,
		MaxBytes: p.Config.MaxBytes,
	})
	c := New(reader, p.Detector, p.Config, p.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := c.Run(ctx); err != nil {
					c.logger.Errorw("kafka glucose sample consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return reader.Close()
		},
	})

	return c, nil
}

func New(reader MessageReader, detector alerts.Detector, cfg *Config, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{
		reader:        reader,
		detector:      detector,
		retryDelay:    cfg.RetryDelay,
		retryMaxDelay: cfg.RetryMaxDelay,
		logger:        logger,
	}
}

// Run consumes messages until ctx is cancelled. A message is committed once detection
// succeeded or the message can never be processed. Any other failure is retried with backoff
// on the same message, so a later commit never skips a sample that was not evaluated.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		var msg kafka.Message
		err := c.retry(ctx, stageFetch, func() error {
			var err error
			msg, err = c.reader.FetchMessage(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to fetch message: %w", err)
		}

		err = c.retry(ctx, stageHandle, func() error {
			return c.Handle(ctx, msg)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.SamplesDiscardedTotal.Inc()
			c.logger.Errorw("discarding glucose sample that cannot be processed",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				zap.Error(err),
			)
		}

		err = c.retry(ctx, stageCommit, func() error {
			return c.reader.CommitMessages(ctx, msg)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to commit message: %w", err)
		}
	}
}

// retry runs fn until it succeeds, fails with an error that cannot succeed on retry, or ctx
// is done.
func (c *Consumer) retry(ctx context.Context, stage string, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(math.MaxUint32),
		retry.LastErrorOnly(true),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !IsPermanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.ConsumerRetriesTotal.WithLabelValues(stage).Inc()
			c.logger.Warnw("retrying kafka glucose sample consumer",
				"stage", stage,
				"attempt", n+1,
				zap.Error(err),
			)
		}),
	)
}

// IsPermanent reports whether err is caused by the message itself, so retrying it can
// never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, glucoseErrors.BadRequest)
}

func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	sample := alerts.Sample{}
	if err := json.Unmarshal(msg.Value, &sample); err != nil {
		return fmt.Errorf("%w: unable to decode glucose sample: %v", glucoseErrors.BadRequest, err)
	}
	if sample.Time.IsZero() {
		sample.Time = msg.Time
	}

	alert, err := c.detector.Detect(ctx, sample)
	if err != nil {
		return err
	}
	if alert != nil {
		c.logger.Debugw("glucose sample created alert",
			"userId", sample.UserId,
			"alertId", alert.Id,
			"offset", msg.Offset,
		)
	}
	return nil
}
