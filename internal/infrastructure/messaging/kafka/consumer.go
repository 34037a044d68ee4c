package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "kafka consumer already running")

// Handler processes one decoded envelope.  Returning an error triggers the
// retry policy; exhausted messages go to the dead-letter topic.
type Handler func(ctx context.Context, env *Envelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs the job-consumption loop for one consumer group.
type Consumer struct {
	reader     ReaderInterface
	deadLetter *Producer
	maxRetries int
	backoff    time.Duration
	logger     logging.Logger

	handlers map[string]Handler
	mu       sync.RWMutex

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer constructs a Consumer subscribed to the given topics.
// deadLetter may be nil; exhausted messages are then dropped with a log line.
func NewConsumer(cfg config.KafkaConfig, workerCfg config.WorkerConfig, topics []string, deadLetter *Producer, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	start := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: topics,
		StartOffset: start,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
	})
	return NewConsumerWithReader(reader, workerCfg, deadLetter, logger)
}

// NewConsumerWithReader injects the reader; used by tests.
func NewConsumerWithReader(reader ReaderInterface, workerCfg config.WorkerConfig, deadLetter *Producer, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	maxRetries := workerCfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := workerCfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Consumer{
		reader:     reader,
		deadLetter: deadLetter,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.Named("kafka_consumer"),
		handlers:   make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to an event type.  Must be called before
// Start.
func (c *Consumer) RegisterHandler(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = h
}

// Start launches the consumption loop.  Returns immediately; Stop shuts the
// loop down.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.loop(loopCtx)
	c.logger.Info("consumer started")
	return nil
}

// Stop cancels the loop and waits for in-flight processing to finish.
func (c *Consumer) Stop() error {
	if !c.running.Swap(false) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	return c.reader.Close()
}

// Processed returns the number of successfully handled messages.
func (c *Consumer) Processed() int64 { return c.processed.Load() }

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			continue
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.failed.Add(1)
		c.logger.Error("undecodable message", logging.String("topic", msg.Topic), logging.Err(err))
		c.sendToDeadLetter(ctx, msg, "undecodable envelope")
		return
	}

	c.mu.RLock()
	handler, ok := c.handlers[env.EventType]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("no handler for event type", logging.String("event_type", env.EventType))
		return
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
		}
		if lastErr = handler(ctx, &env); lastErr == nil {
			c.processed.Add(1)
			return
		}
		c.logger.Warn("handler failed",
			logging.String("event_type", env.EventType),
			logging.Int("attempt", attempt+1),
			logging.Err(lastErr),
		)
	}

	c.failed.Add(1)
	c.sendToDeadLetter(ctx, msg, lastErr.Error())
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg kafka.Message, reason string) {
	if c.deadLetter == nil {
		c.logger.Error("message dropped, no dead-letter producer",
			logging.String("topic", msg.Topic),
			logging.String("reason", reason),
		)
		return
	}
	payload := map[string]string{
		"original_topic": msg.Topic,
		"reason":         reason,
		"body":           string(msg.Value),
	}
	if err := c.deadLetter.Publish(ctx, TopicDeadLetter, "extraction.dead_letter", string(msg.Key), payload); err != nil {
		c.logger.Error("dead-letter publish failed", logging.Err(err))
	}
}
