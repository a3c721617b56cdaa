package middleware

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/pkg/errors"
	"Atlas/pkg/logger"
	"Atlas/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 是否启用堆栈追踪
	EnableStackTrace bool
	// 堆栈追踪级别（full, simple, none）
	StackTraceLevel string
	// 生产环境是否返回详细错误
	ExposeDetailsInProduction bool
	// 是否记录请求详情
	LogRequestDetails bool
	// 是否在 span 中记录异常
	RecordInSpan bool
	// 严重错误回调
	OnSevereError func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte)
	IsProduction  bool
}

// 请求头里这些字段不进日志
var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

const panicErrorCode = "INTERNAL_SERVER_ERROR"

// NewRecoverConfig 创建 recover 配置
func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		EnableStackTrace:  true,
		StackTraceLevel:   "simple",
		LogRequestDetails: true,
		RecordInSpan:      true,
		IsProduction:      config.Cfg.IsProduction(),
	}
}

// RecoverMiddleware 创建 recover 中间件
func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

// RecoverMiddlewareWithConfig 带配置的 recover 中间件
func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	var stack []byte
	if cfg.EnableStackTrace {
		stack = getStackTrace(cfg.StackTraceLevel)
	}

	logPanic(ctx, c, err, stack, cfg)

	if cfg.RecordInSpan {
		span := trace.SpanFromContext(ctx)
		span.RecordError(fmt.Errorf("panic: %v", err))
		span.SetStatus(codes.Error, "panic recovered")
	}

	if cfg.OnSevereError != nil && isSeverePanic(err) {
		cfg.OnSevereError(ctx, c, err, stack)
	}

	writeErrorResponse(ctx, c, err, stack, cfg)
	c.Abort()
}

// writeErrorResponse 生产环境只给友好提示
func writeErrorResponse(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, cfg RecoverConfig) {
	expose := !cfg.IsProduction || cfg.ExposeDetailsInProduction

	errDef := errors.Definition{
		Code:    panicErrorCode,
		Message: "服务器内部错误，请稍后重试",
	}
	if !expose {
		response.Error(ctx, c, errDef)
		return
	}

	errDef.Message = fmt.Sprintf("Internal error: %v", err)
	details := map[string]interface{}{
		"panic":     fmt.Sprintf("%v", err),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if cfg.EnableStackTrace {
		details["stack"] = string(stack)
	}
	response.ErrorWithDetails(ctx, c, errDef, details)
}

// getStackTrace 获取堆栈追踪
func getStackTrace(level string) []byte {
	var buf bytes.Buffer

	switch level {
	case "full":
		buf.Write(debug.Stack())
	case "simple":
		buf.WriteString("goroutine panic:\n")
		// 跳过 runtime 和 recover 相关的函数
		for i := 3; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fn := runtime.FuncForPC(pc)
			if fn == nil {
				continue
			}
			fmt.Fprintf(&buf, "  %s:%d\n    %s\n", file, line, fn.Name())
		}
	}

	return buf.Bytes()
}

// getFormattedStack 去掉 runtime 内部的帧
func getFormattedStack(stack []byte) []byte {
	if len(stack) == 0 {
		return nil
	}

	lines := strings.Split(string(stack), "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, "/runtime/") || strings.Contains(line, "runtime.") {
			continue
		}
		filtered = append(filtered, line)
	}

	return []byte(strings.Join(filtered, "\n"))
}

func logPanic(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, cfg RecoverConfig) {
	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", string(c.UserAgent())),
	}

	requestID := string(c.GetHeader("X-Request-Id"))
	if requestID == "" {
		requestID = string(c.GetHeader("X-Trace-Id"))
	}
	var userID string
	if id, exists := GetUserID(ctx, c); exists {
		userID = id.String()
	}
	log := logger.WithRequest(requestID, userID)

	if cfg.LogRequestDetails {
		headers := make(map[string]string)
		c.Request.Header.VisitAll(func(key, value []byte) {
			if _, hidden := redactedHeaders[strings.ToLower(string(key))]; hidden {
				return
			}
			headers[string(key)] = string(value)
		})
		fields = append(fields, zap.Any("headers", headers))

		// 只记录较小的 JSON 请求体，导入文本可能很长
		body := c.Request.Body()
		if len(body) > 0 && len(body) < 1024 && strings.Contains(string(c.ContentType()), "json") {
			fields = append(fields, zap.ByteString("body", body))
		}
	}

	if cfg.EnableStackTrace {
		fields = append(fields, zap.ByteString("stack", getFormattedStack(stack)))
	}

	if isSeverePanic(err) {
		log.Error("[SEVERE PANIC DETECTED]", fields...)
		return
	}
	log.Error("[PANIC RECOVERED]", fields...)
}

// isSeverePanic 判断是否为严重错误
func isSeverePanic(err interface{}) bool {
	if err == nil {
		return false
	}

	errStr := fmt.Sprintf("%v", err)
	severePatterns := []string{
		"runtime: out of memory",
		"fatal error:",
		"concurrent map writes",
		"concurrent map read and map write",
		"runtime error: makeslice:",
		"all goroutines are asleep - deadlock!",
		"unexpected signal",
	}

	for _, pattern := range severePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
