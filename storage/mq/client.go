package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/pkg/logger"
	mqotel "Atlas/pkg/mq"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			logger.Logger.Error("Failed to connect to RabbitMQ",
				zap.String("addr", config.Cfg.RabbitMQAddr),
				zap.Error(connErr),
			)
			return
		}

		if config.Cfg.OTelEnabled {
			if err := mqotel.InitMQMetrics(otel.Meter("atlas.rabbitmq")); err != nil {
				logger.Logger.Warn("Failed to init mq metrics", zap.Error(err))
			}
		}

		logger.Logger.Info("RabbitMQ connected", zap.String("addr", config.Cfg.RabbitMQAddr))
	})

	return connErr
}

func Connection() *amqp.Connection {
	return conn
}

// Declare 声明 durable topic exchange、队列并绑定，重复调用是幂等的
func Declare(exchange, queue, routingKey string) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	return nil
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
