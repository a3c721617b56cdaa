package planparser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/llm"
	"Atlas/pkg/logger"
)

// LLMParser 让大模型抽取结构，再用与规则解析相同的约束校验
type LLMParser struct {
	client llm.Client
}

func NewLLMParser(client llm.Client) *LLMParser {
	return &LLMParser{client: client}
}

func (p *LLMParser) Name() string { return p.client.Provider() }

type rawItem struct {
	DayIndex        *int     `json:"day_index"`
	Name            string   `json:"name"`
	Type            *string  `json:"type"`
	StartTime       *string  `json:"start_time"`
	DurationMinutes *int     `json:"duration_minutes"`
	Cost            *float64 `json:"cost"`
	Tips            *string  `json:"tips"`
}

type rawPlan struct {
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Days        int       `json:"days"`
	Items       []rawItem `json:"items"`
}

func (p *LLMParser) Parse(ctx context.Context, rawText string, hint Hint) (*ParsedPlan, error) {
	content, err := p.client.ExtractPlan(ctx, rawText)
	if err != nil {
		return nil, err
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		logger.Logger.Warn("LLM returned invalid JSON",
			zap.String("provider", p.client.Provider()),
			zap.Error(err),
		)
		return nil, NewFailure(pkgerrors.CodeEmptyOrUnstructured, "模型输出无法解析为行程结构", rawText)
	}

	return validateRawPlan(&raw, rawText, hint)
}

// validateRawPlan 模型的 day_index 从 1 开始
func validateRawPlan(raw *rawPlan, rawText string, hint Hint) (*ParsedPlan, error) {
	if len(raw.Items) == 0 {
		return nil, NewFailure(pkgerrors.CodeEmptyOrUnstructured, "未抽取到可用时间块，请补充地点或天次信息后重试。", rawText)
	}

	plan := &ParsedPlan{
		Title:       truncateRunes(strings.TrimSpace(raw.Title), maxTitleRunes, ""),
		Destination: truncateRunes(strings.TrimSpace(raw.Destination), maxDestRunes, ""),
		Days:        raw.Days,
	}
	if plan.Title == "" {
		plan.Title = hint.Title
	}
	if plan.Destination == "" {
		plan.Destination = hint.Destination
	}

	orders := make(map[int]int)
	grounded := 0
	for idx, it := range raw.Items {
		day := 1
		if it.DayIndex != nil {
			day = *it.DayIndex
		}
		if day < 1 || day-1 > MaxDayIndex {
			return nil, NewFailure(pkgerrors.CodeInvalidDayIndex,
				fmt.Sprintf("第 %d 个时间块的 day_index 超出 1 到 %d 的范围。", idx+1, MaxDayIndex+1), rawText)
		}
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, NewFailure(pkgerrors.CodeEmptyName,
				fmt.Sprintf("第 %d 个时间块缺少地点名称。", idx+1), rawText)
		}
		if IsGrounded(name, rawText) {
			grounded++
		}

		dayIndex := day - 1
		orders[dayIndex]++
		item := ParsedItem{
			DayIndex:        dayIndex,
			Order:           orders[dayIndex],
			Name:            truncateRunes(name, maxNameRunes, ""),
			Type:            model.DefaultPOIType,
			StartTime:       normalizeClock(it.StartTime),
			DurationMinutes: nonNegativeInt(it.DurationMinutes),
			Cost:            nonNegativeFloat(it.Cost),
			Tips:            nonEmpty(it.Tips),
		}
		if it.Type != nil && strings.TrimSpace(*it.Type) != "" {
			item.Type = strings.TrimSpace(*it.Type)
		}
		plan.Items = append(plan.Items, item)
	}

	if grounded == 0 {
		return nil, NewFailure(pkgerrors.CodeUngroundedItems, "生成的地点与原文缺乏可验证关联，请补充明确地点后重试。", rawText)
	}

	sortItems(plan.Items)
	return plan, nil
}

// IsGrounded 地名在原文中出现，或者至少两个相邻二字片段出现在原文中
func IsGrounded(name, rawText string) bool {
	n := []rune(normalizeForGrounding(name))
	raw := normalizeForGrounding(rawText)
	if len(n) == 0 {
		return false
	}
	if strings.Contains(raw, string(n)) {
		return true
	}
	if len(n) < 2 {
		return false
	}
	hits := 0
	for i := 0; i+1 < len(n); i++ {
		if strings.Contains(raw, string(n[i:i+2])) {
			hits++
		}
	}
	return hits >= 2
}

func normalizeForGrounding(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalizeClock 接受 HH:MM 或 HH:MM:SS，其他格式丢弃
func normalizeClock(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if m := timeRe.FindStringSubmatch(v); m != nil && strings.HasPrefix(v, m[0]) {
		return formatClockStrings(m[1], m[2], m[3])
	}
	return nil
}

func formatClockStrings(h, m, ampm string) *string {
	hour, err := strconv.Atoi(h)
	if err != nil {
		return nil
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return formatClock(hour, minute, ampm)
}

func nonNegativeInt(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func nonNegativeFloat(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
