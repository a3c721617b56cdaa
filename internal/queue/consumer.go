package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/pkg/errors"
	"Atlas/pkg/logger"
	"Atlas/storage/mq"
)

// ForkCounter 累加 forked_count
type ForkCounter interface {
	IncrementForkedCount(ctx context.Context, id uuid.UUID, delta int64) error
}

// MessageMarker 消息幂等标记
type MessageMarker interface {
	// TryMark 首次处理返回 true
	TryMark(ctx context.Context, messageID string) (bool, error)
	MarkDone(ctx context.Context, messageID string) error
	Unmark(ctx context.Context, messageID string) error
}

// ForkedCountHandler 消费 fork 事件
type ForkedCountHandler struct {
	counter ForkCounter
	marker  MessageMarker
}

func NewForkedCountHandler(counter ForkCounter, marker MessageMarker) *ForkedCountHandler {
	return &ForkedCountHandler{counter: counter, marker: marker}
}

// Handle 重复消息返回 SkipMessageError；处理失败会撤销标记以便重投
func (h *ForkedCountHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.ItineraryForkedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 格式错误的消息重投也没有意义
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed itinerary forked message: %v", err)}
	}
	if msg.MessageID == "" || msg.SourceItineraryID == uuid.Nil {
		return &errors.SkipMessageError{Reason: "itinerary forked message missing message_id or source_itinerary_id"}
	}

	first, err := h.marker.TryMark(ctx, msg.MessageID)
	if err != nil {
		// 标记失败继续处理，对账任务兜底
		logger.Logger.Warn("Failed to check message processed status",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	} else if !first {
		logger.Logger.Info("Message already processed or being processed, skipping",
			zap.String("message_id", msg.MessageID),
			zap.String("source_itinerary_id", msg.SourceItineraryID.String()),
		)
		return &errors.SkipMessageError{Reason: fmt.Sprintf("Message %s already processed", msg.MessageID)}
	}

	if err := h.counter.IncrementForkedCount(ctx, msg.SourceItineraryID, 1); err != nil {
		if unmarkErr := h.marker.Unmark(ctx, msg.MessageID); unmarkErr != nil {
			logger.Logger.Warn("Failed to unmark message",
				zap.String("message_id", msg.MessageID),
				zap.Error(unmarkErr),
			)
		}
		return fmt.Errorf("increment forked count for %s: %w", msg.SourceItineraryID, err)
	}

	if err := h.marker.MarkDone(ctx, msg.MessageID); err != nil {
		logger.Logger.Warn("Failed to mark message as processed",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Forked count incremented",
		zap.String("message_id", msg.MessageID),
		zap.String("source_itinerary_id", msg.SourceItineraryID.String()),
	)
	return nil
}

// StartForkedCountConsumer 阻塞直到 ctx 取消
func StartForkedCountConsumer(ctx context.Context, h *ForkedCountHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         QueueForkedCount,
		ConsumerTag:   "forked_count_consumer",
		PrefetchCount: 20,
		Handler:       h.Handle,
	})
}
