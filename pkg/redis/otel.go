package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	redisCommandsTotal   metric.Int64Counter
	redisCommandDuration metric.Float64Histogram
	redisCacheHits       metric.Int64Counter
	redisCacheMisses     metric.Int64Counter
)

// InitRedisMetrics 初始化 Redis 指标
func InitRedisMetrics(meter metric.Meter) error {
	var err error

	redisCommandsTotal, err = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	redisCommandDuration, err = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return err
	}

	// 地理编码缓存命中率
	redisCacheHits, err = meter.Int64Counter(
		"redis.cache.hits",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	redisCacheMisses, err = meter.Int64Counter(
		"redis.cache.misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// TracingHook Redis 追踪 Hook
type TracingHook struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

var _ redis.Hook = (*TracingHook)(nil)

// NewTracingHook 创建追踪 Hook
func NewTracingHook(serviceName string, db int) *TracingHook {
	return &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
	}
}

func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := strings.ToUpper(cmd.Name())
		ctx, span := th.tracer.Start(ctx, "redis."+strings.ToLower(name),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		// 只记录 key，不记录值
		span.SetAttributes(semconv.DBOperation(name))
		if key := firstKey(cmd.Args()); key != "" {
			span.SetAttributes(attribute.String("redis.key", key))
		}

		start := time.Now()
		err := next(ctx, cmd)
		status := statusOf(span, err)
		record(ctx, name, status, time.Since(start).Seconds())

		if name == "GET" && redisCacheHits != nil {
			switch {
			case errors.Is(err, redis.Nil):
				redisCacheMisses.Add(ctx, 1)
			case err == nil:
				redisCacheHits.Add(ctx, 1)
			}
		}

		return err
	}
}

func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}
		span.SetAttributes(
			attribute.Int("redis.pipeline.count", len(cmds)),
			attribute.String("redis.pipeline.commands", strings.Join(names, ",")),
		)

		start := time.Now()
		err := next(ctx, cmds)
		record(ctx, "PIPELINE", statusOf(span, err), time.Since(start).Seconds())
		return err
	}
}

func statusOf(span trace.Span, err error) string {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		return "success"
	case errors.Is(err, redis.Nil):
		span.SetStatus(codes.Ok, "key not found")
		return "not_found"
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "error"
	}
}

func record(ctx context.Context, command, status string, elapsed float64) {
	if redisCommandsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("redis.command", command),
		attribute.String("redis.status", status),
	)
	redisCommandsTotal.Add(ctx, 1, attrs)
	redisCommandDuration.Record(ctx, elapsed, attrs)
}

// firstKey 第一个参数是命令名
func firstKey(args []interface{}) string {
	if len(args) < 2 {
		return ""
	}
	key, ok := args[1].(string)
	if !ok {
		return ""
	}
	if len(key) > 100 {
		return key[:100] + "..."
	}
	return key
}

// InstrumentClient 为 Redis 客户端添加 OpenTelemetry 支持
func InstrumentClient(client *redis.Client, serviceName string, db int) {
	client.AddHook(NewTracingHook(serviceName, db))
}
