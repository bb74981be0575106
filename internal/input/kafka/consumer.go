package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"transitiongraph/internal/logger"
)

// Config configures the Kafka consumer.
type Config struct {
	Brokers       []string
	GroupID       string
	Topic         string
	InitialOffset string // newest|oldest
	PollTimeout   time.Duration
	Buffer        int
}

// Consumer reads event payloads from a Kafka topic through a consumer group.
// It satisfies the same Pop contract as the Redis consumer: a nil payload
// with a nil error means nothing arrived within the poll timeout.
type Consumer struct {
	group       sarama.ConsumerGroup
	topic       string
	pollTimeout time.Duration
	out         chan []byte
	once        sync.Once
}

// NewConsumer joins the consumer group. Consumption starts on the first Pop.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "transitiongraph"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if strings.EqualFold(cfg.InitialOffset, "oldest") {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.ChannelBufferSize = cfg.Buffer

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Infof("Kafka consumer joined group %s on %s", cfg.GroupID, cfg.Topic)
	return &Consumer{
		group:       group,
		topic:       cfg.Topic,
		pollTimeout: cfg.PollTimeout,
		out:         make(chan []byte, cfg.Buffer),
	}, nil
}

// Pop returns the next payload, or nil after the poll timeout.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	c.once.Do(func() { go c.consumeLoop(ctx) })

	timer := time.NewTimer(c.pollTimeout)
	defer timer.Stop()

	select {
	case payload := <-c.out:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	handler := &claimHandler{out: c.out}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			logger.Errorf("Error consuming from topic %s: %v", c.topic, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// claimHandler forwards message values and marks each one once it has been
// handed to the pipeline.
type claimHandler struct {
	out chan<- []byte
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.out <- msg.Value:
				session.MarkMessage(msg, "")
			case <-session.Context().Done():
				return nil
			}
		case <-session.Context().Done():
			return nil
		}
	}
}
