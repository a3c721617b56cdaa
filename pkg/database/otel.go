package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey  = "otel:span"
	startKey = "otel:start_time"
)

var (
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
)

// InitDatabaseMetrics 初始化数据库指标，未调用时插件只产生 span
func InitDatabaseMetrics(meter metric.Meter) error {
	var err error

	dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	return err
}

// PluginConfig 插件配置
type PluginConfig struct {
	ServiceName  string
	DBName       string
	MaxSQLLength int
}

// OTELPlugin GORM OpenTelemetry 插件
type OTELPlugin struct {
	tracer trace.Tracer
	config PluginConfig
}

// NewOTELPlugin 创建插件实例
func NewOTELPlugin(config PluginConfig) *OTELPlugin {
	if config.ServiceName == "" {
		config.ServiceName = "atlas"
	}
	if config.MaxSQLLength <= 0 {
		config.MaxSQLLength = 500
	}

	return &OTELPlugin{
		tracer: otel.Tracer(config.ServiceName + ".gorm"),
		config: config,
	}
}

// Name 实现 gorm.Plugin 接口
func (p *OTELPlugin) Name() string {
	return "otel_plugin"
}

// Initialize 在 gorm 各类回调前后挂 span
func (p *OTELPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("db.select")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("db.insert")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("db.update")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("db.delete")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("db.row")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("db.raw")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after)
}

func (p *OTELPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				semconv.DBName(p.config.DBName),
				semconv.DBOperation(strings.TrimPrefix(operation, "db.")),
			),
		)
		db.InstanceSet(spanKey, span)
		db.InstanceSet(startKey, time.Now())
		db.Statement.Context = ctx
	}
}

func (p *OTELPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if table := db.Statement.Table; table != "" {
		span.SetAttributes(semconv.DBSQLTable(table))
	}
	span.SetAttributes(
		semconv.DBStatement(p.truncate(db.Statement.SQL.String())),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)

	status := "success"
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		status = "not_found"
		span.SetStatus(codes.Ok, "record not found")
	default:
		status = "error"
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	var elapsed float64
	if start, ok := db.InstanceGet(startKey); ok {
		if t, ok := start.(time.Time); ok {
			elapsed = time.Since(t).Seconds()
		}
	}
	recordQuery(db.Statement.Context, db.Statement.Table, status, elapsed)
}

// truncate 只保留语句模板，参数由 gorm 以占位符形式给出
func (p *OTELPlugin) truncate(sql string) string {
	if len(sql) > p.config.MaxSQLLength {
		return sql[:p.config.MaxSQLLength] + "..."
	}
	return sql
}

func recordQuery(ctx context.Context, table, status string, elapsed float64) {
	if dbQueriesTotal == nil || dbQueryDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("db.table", table),
		attribute.String("db.status", status),
	)
	dbQueriesTotal.Add(ctx, 1, attrs)
	dbQueryDuration.Record(ctx, elapsed, attrs)
}
