package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// httpInstruments HTTP 服务端指标
type httpInstruments struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	requestSize  metric.Int64Histogram
	responseSize metric.Int64Histogram
	active       metric.Int64UpDownCounter
}

var (
	httpMetrics     *httpInstruments
	httpMetricsOnce sync.Once
)

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// InitMetrics 用指定 meter 创建 HTTP 指标，只生效一次
func InitMetrics(meter metric.Meter) error {
	var err error
	httpMetricsOnce.Do(func() {
		httpMetrics, err = newHTTPInstruments(meter)
	})
	return err
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	m := &httpInstruments{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	// 导入预览会调用外部服务，上界放宽到 60s
	if m.duration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		return nil, err
	}

	if m.requestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.active, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// OpenTelemetryMiddleware 请求级 span 与指标
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("atlas-http")
	// 未显式初始化时挂到全局 MeterProvider，未配置导出器时为 no-op
	_ = InitMetrics(otel.Meter("atlas-http"))
	m := httpMetrics

	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		method := toValidUTF8(string(c.Method()))
		// 指标用路由模板，避免 UUID 路径撑爆基数
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		spanCtx, span := tracer.Start(ctx, method+" "+route, trace.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPURL(toValidUTF8(c.Request.URI().String())),
			semconv.HTTPScheme(toValidUTF8(string(c.Request.URI().Scheme()))),
			attribute.String("http.target", toValidUTF8(string(c.Path()))),
			attribute.String("http.host", toValidUTF8(string(c.Host()))),
			attribute.String("http.user_agent", toValidUTF8(string(c.UserAgent()))),
		))
		defer span.End()

		if requestID := c.GetHeader("X-Request-Id"); len(requestID) > 0 {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(string(requestID))))
		}

		if m != nil {
			m.active.Add(ctx, 1)
			defer m.active.Add(ctx, -1)
		}

		c.Next(spanCtx)

		// 鉴权在路由组上，回到这里时才有用户
		if userID, ok := GetUserID(ctx, c); ok {
			span.SetAttributes(attribute.String("enduser.id", userID.String()))
		}

		duration := time.Since(start).Seconds()
		statusCode := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(statusCode))

		switch {
		case statusCode >= 500:
			span.SetStatus(codes.Error, "HTTP server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		case statusCode >= 400:
			// 4xx 是调用方的问题，span 不标红
			span.SetAttributes(attribute.Bool("http.client_error", true))
		default:
			span.SetStatus(codes.Ok, "")
		}

		if m == nil {
			return
		}
		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(statusCode),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, duration, attrs)
		if size := int64(c.Request.Header.ContentLength()); size > 0 {
			m.requestSize.Record(ctx, size, attrs)
		}
		if size := int64(len(c.Response.Body())); size > 0 {
			m.responseSize.Record(ctx, size, attrs)
		}
	}
}

// NewServerTracerConfig 返回 hertz server 的追踪选项和对应中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
