package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/yasmin-dev/souq-orders/internal/currency"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	pkgkafka "github.com/yasmin-dev/souq-orders/pkg/kafka"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// Consumer ingests exchange-rate updates from the pricing feed and keeps the
// stored rates and the Redis cache in sync.
type Consumer struct {
	rates       repository.RateRepository
	redisClient *redis.Client
	groupID     string
	logger      *zap.Logger
}

func NewConsumer(rates repository.RateRepository, redisClient *redis.Client, groupID string, logger *zap.Logger) *Consumer {
	return &Consumer{
		rates:       rates,
		redisClient: redisClient,
		groupID:     groupID,
		logger:      logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := pkgkafka.NewConsumerGroup(
		brokers,
		c.groupID,
		[]string{"rate_events"},
		c.processMessage,
		c.logger,
	)

	consumerGroup.Run(ctx)
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	type eventWrapper struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	var wrapper eventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return err
	}

	switch wrapper.Event {
	case "RateUpdated":
		var event domain.RateUpdatedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Failed to unmarshal payload", zap.Error(err))
			return err
		}

		rate, err := decimal.NewFromString(event.Rate)
		if err != nil || rate.Sign() <= 0 {
			mylogger.Warn(
				ctx,
				c.logger,
				"Dropping rate update with invalid rate",
				zap.String("currency", event.Code),
				zap.String("rate", event.Rate),
			)
			return nil
		}

		if err := c.rates.UpsertRate(ctx, event.Code, rate); err != nil {
			return err
		}

		currency.Invalidate(ctx, c.redisClient, event.Code)

		mylogger.Info(
			ctx,
			c.logger,
			"Exchange rate updated",
			zap.String("currency", event.Code),
			zap.String("rate", rate.String()),
		)
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
	}

	return nil
}
