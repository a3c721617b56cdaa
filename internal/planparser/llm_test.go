package planparser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "Atlas/pkg/errors"
)

type fakeLLM struct {
	content string
	err     error
	calls   int
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) ExtractPlan(ctx context.Context, rawText string) (string, error) {
	f.calls++
	return f.content, f.err
}

func TestLLMParserConvertsDayIndex(t *testing.T) {
	client := &fakeLLM{content: "```json\n" + `{
		"title": "杭州两日",
		"destination": "杭州",
		"days": 2,
		"items": [
			{"day_index": 2, "name": "灵隐寺", "start_time": "08:30:00"},
			{"day_index": 1, "name": "西湖", "type": "lake", "duration_minutes": 120, "cost": -1},
			{"day_index": 1, "name": "河坊街", "tips": "  ", "start_time": "evening"}
		]
	}` + "\n```"}

	plan, err := NewLLMParser(client).Parse(context.Background(), "第一天西湖、河坊街，第二天灵隐寺", Hint{})
	require.NoError(t, err)
	require.Len(t, plan.Items, 3)

	assert.Equal(t, "杭州两日", plan.Title)
	assert.Equal(t, "杭州", plan.Destination)

	xihu := plan.Items[0]
	assert.Equal(t, 0, xihu.DayIndex)
	assert.Equal(t, 1, xihu.Order)
	assert.Equal(t, "lake", xihu.Type)
	assert.Equal(t, 120, *xihu.DurationMinutes)
	assert.Nil(t, xihu.Cost)

	hefang := plan.Items[1]
	assert.Equal(t, 0, hefang.DayIndex)
	assert.Equal(t, 2, hefang.Order)
	assert.Nil(t, hefang.Tips)
	assert.Nil(t, hefang.StartTime)
	assert.Equal(t, "scenic", hefang.Type)

	lingyin := plan.Items[2]
	assert.Equal(t, 1, lingyin.DayIndex)
	assert.Equal(t, "08:30", *lingyin.StartTime)
}

func TestLLMParserValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		raw     string
		code    string
	}{
		{"invalid json", `not json`, "x", pkgerrors.CodeEmptyOrUnstructured},
		{"no items", `{"title":"t","items":[]}`, "x", pkgerrors.CodeEmptyOrUnstructured},
		{"day zero", `{"items":[{"day_index":0,"name":"故宫"}]}`, "故宫", pkgerrors.CodeInvalidDayIndex},
		{"day too large", `{"items":[{"day_index":61,"name":"故宫"}]}`, "故宫", pkgerrors.CodeInvalidDayIndex},
		{"empty name", `{"items":[{"day_index":1,"name":"  "}]}`, "故宫", pkgerrors.CodeEmptyName},
		{"ungrounded", `{"items":[{"day_index":1,"name":"埃菲尔铁塔"}]}`, "第一天去故宫", pkgerrors.CodeUngroundedItems},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLLMParser(&fakeLLM{content: tc.content}).Parse(context.Background(), tc.raw, Hint{})
			requireFailure(t, err, tc.code)
		})
	}
}

func TestLLMParserKeepsPartiallyGroundedPlans(t *testing.T) {
	client := &fakeLLM{content: `{"items":[{"day_index":1,"name":"故宫"},{"day_index":1,"name":"全聚德"}]}`}

	plan, err := NewLLMParser(client).Parse(context.Background(), "Day 1 故宫", Hint{Title: "hint", Destination: "北京"})
	require.NoError(t, err)
	assert.Len(t, plan.Items, 2)
	assert.Equal(t, "hint", plan.Title)
	assert.Equal(t, "北京", plan.Destination)
}

func TestLLMParserPropagatesClientError(t *testing.T) {
	upstream := errors.New("boom")
	_, err := NewLLMParser(&fakeLLM{err: upstream}).Parse(context.Background(), "x", Hint{})
	assert.ErrorIs(t, err, upstream)
}

func TestIsGrounded(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"Forbidden City", "day 1: forbiddencity at 9", true},
		{"故宫博物院", "第一天去故宫，然后博物院附近吃饭", true},
		{"颐和园", "第一天颐和", false},
		{"埃菲尔铁塔", "第一天去故宫", false},
		{"", "anything", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsGrounded(tc.name, tc.raw))
		})
	}
}
