package planparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "Atlas/pkg/errors"
)

func parseRules(t *testing.T, text string, hint Hint) *ParsedPlan {
	t.Helper()
	plan, err := NewRulesParser().Parse(context.Background(), text, hint)
	require.NoError(t, err)
	return plan
}

func requireFailure(t *testing.T, err error, code string) *pkgerrors.ValidationFailure {
	t.Helper()
	require.Error(t, err)
	vf, ok := pkgerrors.AsValidationFailure(err)
	require.True(t, ok, "expected ValidationFailure, got %v", err)
	assert.Equal(t, code, vf.ErrorCode)
	assert.NotEmpty(t, vf.SuggestedActions)
	return vf
}

func TestRulesParserExample(t *testing.T) {
	plan := parseRules(t, "Day 1: Forbidden City at 9:00 for 3 hours; Day 2: unknown tiny teahouse",
		Hint{Title: "Beijing", Destination: "北京", Days: 3})

	require.Len(t, plan.Items, 2)
	assert.Equal(t, "Beijing", plan.Title)
	assert.Equal(t, "北京", plan.Destination)
	assert.Equal(t, 2, plan.Days)

	first := plan.Items[0]
	assert.Equal(t, 0, first.DayIndex)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, "Forbidden City", first.Name)
	require.NotNil(t, first.StartTime)
	assert.Equal(t, "09:00", *first.StartTime)
	require.NotNil(t, first.DurationMinutes)
	assert.Equal(t, 180, *first.DurationMinutes)
	assert.Nil(t, first.Cost)
	assert.Equal(t, "scenic", first.Type)

	second := plan.Items[1]
	assert.Equal(t, 1, second.DayIndex)
	assert.Equal(t, 1, second.Order)
	assert.Equal(t, "unknown tiny teahouse", second.Name)
	assert.Equal(t, "restaurant", second.Type)
}

func TestRulesParserChinese(t *testing.T) {
	text := "北京三日游\n第一天：上午9点去故宫（提前预约），门票60元；然后逛景山公园\n第二天：颐和园 2个半小时，下午3点半参观圆明园"
	plan := parseRules(t, text, Hint{})

	assert.Equal(t, "北京三日游", plan.Title)
	assert.Equal(t, "北京", plan.Destination)
	require.Len(t, plan.Items, 4)

	gugong := plan.Items[0]
	assert.Equal(t, "故宫", gugong.Name)
	assert.Equal(t, "09:00", *gugong.StartTime)
	require.NotNil(t, gugong.Tips)
	assert.Equal(t, "提前预约", *gugong.Tips)
	require.NotNil(t, gugong.Cost)
	assert.Equal(t, 60.0, *gugong.Cost)

	assert.Equal(t, "景山公园", plan.Items[1].Name)
	assert.Equal(t, 2, plan.Items[1].Order)

	yiheyuan := plan.Items[2]
	assert.Equal(t, 1, yiheyuan.DayIndex)
	assert.Equal(t, "颐和园", yiheyuan.Name)
	require.NotNil(t, yiheyuan.DurationMinutes)
	assert.Equal(t, 150, *yiheyuan.DurationMinutes)

	yuanmingyuan := plan.Items[3]
	assert.Equal(t, "圆明园", yuanmingyuan.Name)
	assert.Equal(t, "15:30", *yuanmingyuan.StartTime)
}

func TestRulesParserChineseTimeBeforeDuration(t *testing.T) {
	cases := []struct {
		text     string
		name     string
		start    string
		duration *int
	}{
		{"第1天：故宫 9点 3小时", "故宫", "09:00", intPtr(180)},
		{"第1天：故宫 9点30分 2小时", "故宫", "09:30", intPtr(120)},
		{"第1天：故宫 9点 15分", "故宫", "09:15", nil},
		{"第1天：下午2点半 天坛", "天坛", "14:30", nil},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			plan := parseRules(t, tc.text, Hint{})
			require.Len(t, plan.Items, 1)

			item := plan.Items[0]
			assert.Equal(t, tc.name, item.Name)
			require.NotNil(t, item.StartTime)
			assert.Equal(t, tc.start, *item.StartTime)
			assert.Equal(t, tc.duration, item.DurationMinutes)
		})
	}
}

func TestRulesParserBareDMarkerNeedsAdjacentDigits(t *testing.T) {
	plan := parseRules(t, "Day 1: Hall D 3 then Tower", Hint{})
	require.Len(t, plan.Items, 2)

	assert.Equal(t, 1, plan.Days)
	assert.Equal(t, "Hall D 3", plan.Items[0].Name)
	assert.Equal(t, 0, plan.Items[1].DayIndex)
	assert.Equal(t, "Tower", plan.Items[1].Name)
}

func TestRulesParserHeaderDestination(t *testing.T) {
	cases := []struct {
		header string
		title  string
		dest   string
	}{
		{"Trip to Hangzhou", "Trip to Hangzhou", "Hangzhou"},
		{"Kyoto trip:", "Kyoto trip", "Kyoto"},
		{"成都之旅", "成都之旅", "成都"},
		{"周末随便走走", "周末随便走走", "默认"},
	}

	for _, tc := range cases {
		t.Run(tc.header, func(t *testing.T) {
			plan := parseRules(t, tc.header+"\nDay 1: somewhere", Hint{Title: "T", Destination: "默认"})
			assert.Equal(t, tc.title, plan.Title)
			assert.Equal(t, tc.dest, plan.Destination)
		})
	}
}

func TestRulesParserAttributes(t *testing.T) {
	text := "D1: visit the Louvre at 2:30pm for 90 min, $20\nD2: Seattle Space Needle 1.5 hours cost 35; Morningside Park 30分钟 120元"
	plan := parseRules(t, text, Hint{})
	require.Len(t, plan.Items, 3)

	louvre := plan.Items[0]
	assert.Equal(t, "the Louvre", louvre.Name)
	assert.Equal(t, "14:30", *louvre.StartTime)
	assert.Equal(t, 90, *louvre.DurationMinutes)
	assert.Equal(t, 20.0, *louvre.Cost)

	needle := plan.Items[1]
	assert.Equal(t, "Seattle Space Needle", needle.Name)
	assert.Equal(t, 90, *needle.DurationMinutes)
	assert.Equal(t, 35.0, *needle.Cost)

	park := plan.Items[2]
	assert.Equal(t, "Morningside Park", park.Name)
	assert.Equal(t, 30, *park.DurationMinutes)
	assert.Equal(t, 120.0, *park.Cost)
}

func TestRulesParserRepeatedDayMarkersKeepExtractionOrder(t *testing.T) {
	plan := parseRules(t, "Day 2: A\nDay 1: B\nDay 2: C", Hint{})
	require.Len(t, plan.Items, 3)

	got := make([][3]interface{}, 0, len(plan.Items))
	for _, it := range plan.Items {
		got = append(got, [3]interface{}{it.DayIndex, it.Order, it.Name})
	}
	assert.Equal(t, [][3]interface{}{
		{0, 1, "B"},
		{1, 1, "A"},
		{1, 2, "C"},
	}, got)
}

func TestRulesParserNoDayMarkers(t *testing.T) {
	_, err := NewRulesParser().Parse(context.Background(), "just some words about nothing", Hint{})
	vf := requireFailure(t, err, pkgerrors.CodeEmptyOrUnstructured)
	require.NotNil(t, vf.RawExcerpt)
	assert.Equal(t, "just some words about nothing", *vf.RawExcerpt)
}

func TestRulesParserMarkersWithoutPlaces(t *testing.T) {
	_, err := NewRulesParser().Parse(context.Background(), "Day 1: ; Day 2: at 9:00", Hint{})
	requireFailure(t, err, pkgerrors.CodeEmptyOrUnstructured)
}

func TestRulesParserInvalidDayIndex(t *testing.T) {
	for _, text := range []string{"Day 0: museum", "Day 61: museum", "第七十天：博物馆"} {
		t.Run(text, func(t *testing.T) {
			_, err := NewRulesParser().Parse(context.Background(), text, Hint{})
			requireFailure(t, err, pkgerrors.CodeInvalidDayIndex)
		})
	}
}

func TestRulesParserDeterministic(t *testing.T) {
	text := "Trip to Rome\nDay 1: Colosseum at 9:00; Roman Forum\nDay 3: Vatican Museums for 4 hours"
	a := parseRules(t, text, Hint{})
	b := parseRules(t, text, Hint{})
	assert.Equal(t, a, b)
	assert.Equal(t, 3, a.Days)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]int{
		"3": 3, "十": 10, "十二": 12, "二十": 20, "二十三": 23, "两": 2, "一": 1,
	}
	for in, want := range cases {
		got, ok := parseNumber(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := parseNumber("abc")
	assert.False(t, ok)
}

func TestExcerpt(t *testing.T) {
	assert.Nil(t, Excerpt("   "))

	got := Excerpt(" line one\nline two ")
	require.NotNil(t, got)
	assert.Equal(t, "line one line two", *got)

	long := make([]rune, 130)
	for i := range long {
		long[i] = '字'
	}
	got = Excerpt(string(long))
	require.NotNil(t, got)
	assert.Equal(t, 123, len([]rune(*got)))
	assert.Equal(t, "...", string([]rune(*got)[120:]))
}
