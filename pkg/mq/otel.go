package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	mqMessagesTotal   metric.Int64Counter
	mqMessageDuration metric.Float64Histogram
)

var tracer = otel.Tracer("atlas.rabbitmq")

// InitMQMetrics 初始化 RabbitMQ 指标
func InitMQMetrics(meter metric.Meter) error {
	var err error

	mqMessagesTotal, err = meter.Int64Counter(
		"mq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	mqMessageDuration, err = meter.Float64Histogram(
		"mq.message.duration",
		metric.WithDescription("RabbitMQ publish / handle duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	return err
}

// PublishFunc 实际发送动作，由 storage/mq 提供
type PublishFunc func(ctx context.Context, msg amqp.Publishing) error

// PublishWithTracing 创建 producer span，把追踪上下文写进消息头后发送
func PublishWithTracing(ctx context.Context, exchange, routingKey string, msg amqp.Publishing, publish PublishFunc) error {
	ctx, span := tracer.Start(ctx, "rabbitmq.publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	headers := make(amqp.Table, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, &MessageHeaderCarrier{Headers: headers})
	msg.Headers = headers

	start := time.Now()
	err := publish(ctx, msg)
	finish(ctx, span, "publish", routingKey, err, time.Since(start))
	return err
}

// StartConsumeSpan 从消息头恢复上游 trace，返回的 end 在处理完成后调用
func StartConsumeSpan(ctx context.Context, queue string, d amqp.Delivery) (context.Context, func(error)) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, &MessageHeaderCarrier{Headers: d.Headers})
	ctx, span := tracer.Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingRabbitmqDestinationRoutingKey(d.RoutingKey),
			semconv.MessagingMessageID(d.MessageId),
		),
	)

	start := time.Now()
	return ctx, func(err error) {
		finish(ctx, span, "process", queue, err, time.Since(start))
		span.End()
	}
}

func finish(ctx context.Context, span trace.Span, operation, target string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if mqMessagesTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.target", target),
		attribute.String("messaging.status", status),
	)
	mqMessagesTotal.Add(ctx, 1, attrs)
	mqMessageDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// MessageHeaderCarrier 实现 propagation.TextMapCarrier 接口
type MessageHeaderCarrier struct {
	Headers amqp.Table
}

func (m *MessageHeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *MessageHeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *MessageHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}
