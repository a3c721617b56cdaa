package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/pkg/logger"
	"Atlas/pkg/snowflake"
	"Atlas/storage/mq"
)

// Publisher 行程事件发布
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishItineraryForked 发布 fork 事件，MessageID 为空时用 snowflake 生成
func (p *Publisher) PublishItineraryForked(ctx context.Context, msg model.ItineraryForkedMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextMessageID("fork")
		if err != nil {
			logger.Logger.Error("Failed to generate message ID",
				zap.String("forked_itinerary_id", msg.ForkedItineraryID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = id
	}
	if msg.OccurredAt == "" {
		msg.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := mq.PublishMessage(ctx, ItineraryExchange, RoutingKeyItineraryForked, msg.MessageID, msg); err != nil {
		logger.Logger.Error("Failed to publish itinerary forked message",
			zap.String("message_id", msg.MessageID),
			zap.String("source_itinerary_id", msg.SourceItineraryID.String()),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published itinerary forked message",
		zap.String("message_id", msg.MessageID),
		zap.String("source_itinerary_id", msg.SourceItineraryID.String()),
		zap.String("forked_itinerary_id", msg.ForkedItineraryID.String()),
	)
	return nil
}
