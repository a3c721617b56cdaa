package llm

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"Atlas/config"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
)

// Client 大模型客户端，只负责把游记文本变成 JSON 文本
type Client interface {
	Provider() string
	// ExtractPlan 返回模型输出的 JSON 字符串，结构由调用方校验
	ExtractPlan(ctx context.Context, rawText string) (string, error)
}

var (
	llmClient Client
	llmOnce   sync.Once
	llmErr    error
)

// Init 按 PLAN_PARSER 初始化，rules 不需要大模型
func Init() error {
	llmOnce.Do(func() {
		cfg := config.Cfg
		provider := strings.ToLower(cfg.PlanParser)

		switch provider {
		case "deepseek":
			if cfg.DeepSeekAPIKey == "" {
				llmErr = pkgerrors.ErrLLMKeyMissing
				break
			}
			llmClient, llmErr = NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekBaseURL, cfg.LLMTimeout)
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				llmErr = pkgerrors.ErrLLMKeyMissing
				break
			}
			llmClient, llmErr = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.LLMTimeout)
		case "rules", "":
			return
		default:
			llmErr = pkgerrors.ErrUnsupportedPlanParser
		}

		if llmErr != nil {
			logger.Logger.Error("Failed to initialize LLM client",
				zap.String("provider", provider),
				zap.Error(llmErr),
			)
			return
		}

		logger.Logger.Info("LLM client initialized",
			zap.String("provider", provider),
		)
	})

	return llmErr
}

// GetClient 未配置大模型时返回 nil
func GetClient() Client {
	return llmClient
}
