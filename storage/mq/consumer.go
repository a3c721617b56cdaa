package mq

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
	mqotel "Atlas/pkg/mq"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或 channel 关闭。
// 处理失败 nack 并重新入队，SkipMessageError 直接 ack
func Consume(ctx context.Context, opts ConsumeOptions) error {
	conn := Connection()
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(opts.ConsumerTag, false)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed: %s", opts.Queue)
			}

			msgCtx, end := mqotel.StartConsumeSpan(ctx, opts.Queue, msg)
			err := opts.Handler(msgCtx, msg.Body)
			end(err)

			var skip *pkgerrors.SkipMessageError
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.As(err, &skip):
				logger.Logger.Info("Skip message",
					zap.String("queue", opts.Queue),
					zap.String("message_id", msg.MessageId),
					zap.String("reason", skip.Reason),
				)
				_ = msg.Ack(false)
			default:
				logger.Logger.Error("Failed to process message",
					zap.String("queue", opts.Queue),
					zap.String("message_id", msg.MessageId),
					zap.Error(err),
				)
				_ = msg.Nack(false, true)
			}
		}
	}
}
