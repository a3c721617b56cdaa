package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 业务指标集合
type OTelMetrics struct {
	// fork 相关
	ForkTotal metric.Int64Counter

	// 文本解析相关
	ExtractTotal     metric.Int64Counter
	ExtractDuration  metric.Float64Histogram
	ResolveTotal     metric.Int64Counter
	GeocoderDuration metric.Float64Histogram

	// 导入相关
	ImportTotal        metric.Int64Counter
	ImportedItemsTotal metric.Int64Counter
	ImportDuration     metric.Float64Histogram

	// forked_count 对账
	ForkCountDriftTotal metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("atlas")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	m := &OTelMetrics{}

	m.ForkTotal, err = meter.Int64Counter(
		"itinerary_fork_total",
		metric.WithDescription("Total number of itinerary forks"),
		metric.WithUnit("{fork}"),
	)
	if err != nil {
		return err
	}

	m.ExtractTotal, err = meter.Int64Counter(
		"plan_extract_total",
		metric.WithDescription("Total number of plan extractions by outcome"),
		metric.WithUnit("{extraction}"),
	)
	if err != nil {
		return err
	}

	m.ExtractDuration, err = meter.Float64Histogram(
		"plan_extract_duration_seconds",
		metric.WithDescription("Time spent extracting a plan in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.ResolveTotal, err = meter.Int64Counter(
		"poi_resolve_total",
		metric.WithDescription("Total number of POI resolutions by match source"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return err
	}

	m.GeocoderDuration, err = meter.Float64Histogram(
		"geocoder_request_duration_seconds",
		metric.WithDescription("External geocoder latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.ImportTotal, err = meter.Int64Counter(
		"plan_import_total",
		metric.WithDescription("Total number of plan imports by status"),
		metric.WithUnit("{import}"),
	)
	if err != nil {
		return err
	}

	m.ImportedItemsTotal, err = meter.Int64Counter(
		"plan_imported_items_total",
		metric.WithDescription("Total number of itinerary items written by imports"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return err
	}

	m.ImportDuration, err = meter.Float64Histogram(
		"plan_import_duration_seconds",
		metric.WithDescription("Time spent committing a plan in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.ForkCountDriftTotal, err = meter.Int64Counter(
		"fork_count_drift_total",
		metric.WithDescription("Itineraries whose forked_count was corrected by reconciliation"),
		metric.WithUnit("{itinerary}"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，未初始化时返回 nil，Record 方法对 nil 安全
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordFork 记录一次 fork
func (m *OTelMetrics) RecordFork(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ForkTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordExtract 记录一次解析，outcome 为 ok / low_confidence / 校验失败码
func (m *OTelMetrics) RecordExtract(ctx context.Context, parser, outcome string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("parser", parser),
		attribute.String("outcome", outcome),
	)
	m.ExtractTotal.Add(ctx, 1, attrs)
	m.ExtractDuration.Record(ctx, duration, metric.WithAttributes(attribute.String("parser", parser)))
}

// RecordResolve 记录单个地点的匹配来源
func (m *OTelMetrics) RecordResolve(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ResolveTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("match_source", source)))
}

// RecordGeocoder 记录外部地理编码调用
func (m *OTelMetrics) RecordGeocoder(ctx context.Context, provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.GeocoderDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordImport 记录一次导入
func (m *OTelMetrics) RecordImport(ctx context.Context, status string, items int, duration float64) {
	if m == nil {
		return
	}
	m.ImportTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if items > 0 {
		m.ImportedItemsTotal.Add(ctx, int64(items))
	}
	m.ImportDuration.Record(ctx, duration, metric.WithAttributes(attribute.String("status", status)))
}

// RecordForkCountDrift 记录对账修正的行程数
func (m *OTelMetrics) RecordForkCountDrift(ctx context.Context, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.ForkCountDriftTotal.Add(ctx, count)
}
