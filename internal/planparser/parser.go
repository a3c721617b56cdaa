package planparser

import (
	"context"
	"strings"

	pkgerrors "Atlas/pkg/errors"
)

// MaxDayIndex 天次上限（从 0 开始）
const MaxDayIndex = 59

const (
	maxExcerptRunes = 120
	maxNameRunes    = 128
	maxTitleRunes   = 128
	maxDestRunes    = 64
)

// Hint 文本里没有标题/目的地时使用目标行程的
type Hint struct {
	Title       string
	Destination string
	Days        int
}

// ParsedItem 第一阶段的结果，还没有关联 POI
type ParsedItem struct {
	DayIndex        int
	Order           int
	Name            string
	Type            string
	StartTime       *string
	DurationMinutes *int
	Cost            *float64
	Tips            *string
}

// ParsedPlan Items 按 (DayIndex, Order) 排好序
type ParsedPlan struct {
	Title       string
	Destination string
	Days        int
	Items       []ParsedItem
}

// Parser 把自由文本拆成按天分组的地点序列
type Parser interface {
	Name() string
	// Parse 文本无法使用时返回 *errors.ValidationFailure
	Parse(ctx context.Context, rawText string, hint Hint) (*ParsedPlan, error)
}

var defaultSuggestions = []string{"请补充更明确的地点与天次描述后重试", "或跳过 AI 生成，直接手动编辑时间轴"}

var suggestionsByCode = map[string][]string{
	pkgerrors.CodeEmptyOrUnstructured: {
		"请用“Day 1:”或“第1天”标出每一天的安排",
		"请写出具体的地点名称",
		"或跳过 AI 生成，直接手动编辑时间轴",
	},
	pkgerrors.CodeInvalidDayIndex: {
		"天次需要在 1 到 60 之间",
		"或跳过 AI 生成，直接手动编辑时间轴",
	},
	pkgerrors.CodeEmptyName: {
		"每个安排都需要包含地点名称",
		"或跳过 AI 生成，直接手动编辑时间轴",
	},
	pkgerrors.CodeUngroundedItems: defaultSuggestions,
	pkgerrors.CodeAllUnresolved: {
		"请检查地点名称是否准确，或在开头注明目的地城市",
		"或跳过 AI 生成，直接手动编辑时间轴",
	},
}

// NewFailure 构造用户可见的校验失败
func NewFailure(code, reason, rawText string) *pkgerrors.ValidationFailure {
	actions, ok := suggestionsByCode[code]
	if !ok {
		actions = defaultSuggestions
	}
	return &pkgerrors.ValidationFailure{
		ErrorCode:        code,
		Reason:           reason,
		RawExcerpt:       Excerpt(rawText),
		SuggestedActions: append([]string(nil), actions...),
	}
}

// Excerpt 去掉首尾空白、换行变空格，超过 120 字截断
func Excerpt(rawText string) *string {
	s := strings.TrimSpace(rawText)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if s == "" {
		return nil
	}
	s = truncateRunes(s, maxExcerptRunes, "...")
	return &s
}

func truncateRunes(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
