package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"Atlas/pkg/errors"
	"Atlas/pkg/logger"

	"go.uber.org/zap"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

func kindToHTTPStatus(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound // 404
	case errors.KindForbidden:
		return http.StatusForbidden // 403
	case errors.KindConflict:
		return http.StatusConflict // 409
	case errors.KindInvalidState, errors.KindInvalidRequest:
		return http.StatusBadRequest // 400
	case errors.KindUnauthorized:
		return http.StatusUnauthorized // 401
	case errors.KindTooManyRequests:
		return http.StatusTooManyRequests // 429
	case errors.KindValidation:
		return http.StatusUnprocessableEntity // 422
	case errors.KindUpstream:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

func errorToHTTPStatus(err error) int {
	if _, ok := errors.AsValidationFailure(err); ok {
		return http.StatusUnprocessableEntity
	}
	def, ok := errors.AsDefinition(err)
	if !ok {
		return http.StatusInternalServerError
	}
	return kindToHTTPStatus(def.Kind)
}

// Error 返回错误响应。ValidationFailure 使用独立的 422 结构，其余走统一的 error 包裹
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	if vf, ok := errors.AsValidationFailure(err); ok {
		c.JSON(http.StatusUnprocessableEntity, vf)
		return
	}

	statusCode := errorToHTTPStatus(err)

	var code, message string
	if def, ok := errors.AsDefinition(err); ok {
		code = def.Code
		message = def.Message
	} else {
		// 内部错误不把原始信息暴露给调用方
		logger.Logger.Error("Unhandled error", zap.Error(err), zap.String("path", string(c.Path())))
		code = "INTERNAL_ERROR"
		message = "Internal server error"
	}

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

// Created 返回 201，用于创建与 fork
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

// NoContent 返回 204 No Content（用于 DELETE 等操作）
func NoContent(ctx context.Context, c *app.RequestContext) {
	c.Status(http.StatusNoContent)
}
