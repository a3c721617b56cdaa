package planparser

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"Atlas/internal/model"
	pkgerrors "Atlas/pkg/errors"
)

var (
	dayMarkerRe = regexp.MustCompile(`(?i:\bday\s*(\d{1,3})\b)|\bD(\d{1,3})\b|第\s*([0-9零〇一二两三四五六七八九十]+)\s*天`)
	segmentSep  = regexp.MustCompile(`[;；,，、。\n]+|(?i:\bthen\b)|然后|接着`)

	notesRe = regexp.MustCompile(`\(([^()]*)\)|（([^（）]*)）`)

	timeAtRe   = regexp.MustCompile(`(?i)(?:\bat\s*|@\s*)(\d{1,2})[:：](\d{2})(?:\s*(am|pm)\b)?`)
	timeRe     = regexp.MustCompile(`(?i)\b(\d{1,2})[:：](\d{2})(?:\s*(am|pm)\b)?`)
	timeCNRe   = regexp.MustCompile(`(\d{1,2})\s*点(?:\s*(半)|(\d{1,2})分?|\s+(\d{1,2})\s*分)?`)
	timeAmPmRe = regexp.MustCompile(`(?i)(?:\bat\s*)?\b(\d{1,2})\s*(am|pm)\b`)

	durationForRe = regexp.MustCompile(`(?i)\bfor\s+(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)
	durationRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|minutes?|mins?)\b`)
	durationCNRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*个?\s*(半)?\s*(小时|钟头|分钟)`)
	halfHourCNRe  = regexp.MustCompile(`半\s*个?\s*小时`)

	costSymbolRe  = regexp.MustCompile(`[¥￥$]\s*(\d+(?:\.\d+)?)`)
	costWordRe    = regexp.MustCompile(`(?i)\bcosts?\s*[:：]?\s*(\d+(?:\.\d+)?)`)
	costCNWordRe  = regexp.MustCompile(`(?:门票|花费|费用|人均)\s*[:：]?\s*(\d+(?:\.\d+)?)\s*(?:元|块)?`)
	costSuffixRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:元|块钱|块|rmb\b|yuan\b|cny\b)`)
	periodPrefix  = regexp.MustCompile(`(?i)^(?:早上|上午|中午|下午|傍晚|晚上|清晨|凌晨|(?:in the )?(?:morning|afternoon|evening)\b)\s*[:：]?\s*`)
	verbPrefix    = regexp.MustCompile(`(?i)^(?:(?:visit|go to|head to|explore|see)\b|去|到|参观|游览|前往|逛逛|逛)\s*`)
	dayBodyPrefix = regexp.MustCompile(`^[\s:：.．、\-—–]+`)
	spaceRe       = regexp.MustCompile(`\s+`)

	destTripToRe = regexp.MustCompile(`(?i)^(?:an?\s+)?(?:trip|travel|journey|vacation|holiday)\s+to\s+(.+)$`)
	destSuffixRe = regexp.MustCompile(`(?i)^(.+?)\s+(?:trip|travel|itinerary|tour|vacation)$`)
	destCNRe     = regexp.MustCompile(`^(.+?)(?:之旅|旅行|旅游|游记|行程|游)$`)
	destCNDaysRe = regexp.MustCompile(`[0-9零〇一二两三四五六七八九十]+\s*[日天]$`)
	trimPunctSet = " \t\u3000:：-—–~·.。!！?？\"'“”‘’"
)

// RulesParser 基于规则的确定性解析，要求文本带有显式天次标记
type RulesParser struct{}

func NewRulesParser() *RulesParser {
	return &RulesParser{}
}

func (p *RulesParser) Name() string { return "rules" }

type dayChunk struct {
	day  int
	body string
	raw  string
}

func (p *RulesParser) Parse(ctx context.Context, rawText string, hint Hint) (*ParsedPlan, error) {
	text := strings.ReplaceAll(rawText, "\r\n", "\n")

	markers := dayMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(markers) == 0 {
		return nil, NewFailure(pkgerrors.CodeEmptyOrUnstructured, "没有找到天次标记，无法按天拆分行程", rawText)
	}

	chunks := make([]dayChunk, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}

		day, ok := markerDay(text, m)
		if !ok || day < 1 || day-1 > MaxDayIndex {
			return nil, NewFailure(pkgerrors.CodeInvalidDayIndex,
				fmt.Sprintf("天次 %q 超出 1 到 %d 的范围", text[m[0]:m[1]], MaxDayIndex+1),
				text[m[0]:end])
		}

		chunks = append(chunks, dayChunk{
			day:  day,
			body: dayBodyPrefix.ReplaceAllString(text[m[1]:end], ""),
			raw:  text[m[0]:end],
		})
	}

	plan := &ParsedPlan{}
	plan.Title, plan.Destination = parseHeader(text[:markers[0][0]], hint)

	orders := make(map[int]int)
	maxDay := 0
	for _, c := range chunks {
		if c.day > maxDay {
			maxDay = c.day
		}
		chunkStart := len(plan.Items)
		for _, seg := range segmentSep.Split(c.body, -1) {
			item, named := parseSegment(seg)
			if !named {
				// "门票60元" 这类没有地名的片段补到同一天的上一个地点
				if len(plan.Items) > chunkStart {
					mergeAttributes(&plan.Items[len(plan.Items)-1], item)
				}
				continue
			}
			dayIndex := c.day - 1
			orders[dayIndex]++
			item.DayIndex = dayIndex
			item.Order = orders[dayIndex]
			plan.Items = append(plan.Items, item)
		}
	}

	if len(plan.Items) == 0 {
		return nil, NewFailure(pkgerrors.CodeEmptyOrUnstructured, "天次标记下没有可识别的地点", rawText)
	}

	// 同一天的标记可能出现多次
	sortItems(plan.Items)
	plan.Days = maxDay
	return plan, nil
}

func markerDay(text string, m []int) (int, bool) {
	for g := 1; g <= 3; g++ {
		start, end := m[2*g], m[2*g+1]
		if start < 0 {
			continue
		}
		return parseNumber(text[start:end])
	}
	return 0, false
}

var cnDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
}

// parseNumber 支持阿拉伯数字和一百以内的中文数字
func parseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	total, current := 0, 0
	for _, r := range s {
		if r == '十' {
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
			continue
		}
		d, ok := cnDigits[r]
		if !ok {
			return 0, false
		}
		current = current*10 + d
	}
	return total + current, true
}

func parseHeader(header string, hint Hint) (string, string) {
	line := ""
	for _, l := range strings.Split(header, "\n") {
		if l = strings.Trim(l, trimPunctSet); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return hint.Title, hint.Destination
	}

	title := truncateRunes(spaceRe.ReplaceAllString(line, " "), maxTitleRunes, "")
	dest := hint.Destination
	switch {
	case destTripToRe.MatchString(line):
		dest = destTripToRe.FindStringSubmatch(line)[1]
	case destSuffixRe.MatchString(line):
		dest = destSuffixRe.FindStringSubmatch(line)[1]
	case destCNRe.MatchString(line):
		dest = destCNDaysRe.ReplaceAllString(destCNRe.FindStringSubmatch(line)[1], "")
	}
	dest = strings.Trim(dest, trimPunctSet)
	if dest == "" {
		dest = hint.Destination
	}
	return title, truncateRunes(dest, maxDestRunes, "")
}

// parseSegment 依次取出备注、时间、时长、费用，剩下的是地名。没有地名时第二个返回值为 false
func parseSegment(seg string) (ParsedItem, bool) {
	var item ParsedItem
	s := seg

	var notes []string
	for _, m := range notesRe.FindAllStringSubmatch(s, -1) {
		n := strings.TrimSpace(m[1] + m[2])
		if n != "" {
			notes = append(notes, n)
		}
	}
	s = notesRe.ReplaceAllString(s, " ")
	if len(notes) > 0 {
		tips := strings.Join(notes, "; ")
		item.Tips = &tips
	}

	// 先取时长，"9点 3小时" 里的 3 不能当成分钟
	s, item.DurationMinutes = extractDuration(s)
	s, item.StartTime = extractTime(s)
	s, item.Cost = extractCost(s)

	name := strings.Trim(spaceRe.ReplaceAllString(s, " "), trimPunctSet)
	for i := 0; i < 2; i++ {
		name = periodPrefix.ReplaceAllString(name, "")
		name = verbPrefix.ReplaceAllString(name, "")
		name = strings.Trim(name, trimPunctSet)
	}
	if name == "" {
		return item, false
	}

	item.Name = truncateRunes(name, maxNameRunes, "")
	item.Type = inferType(item.Name)
	return item, true
}

// mergeAttributes 只补空缺的字段，备注追加
func mergeAttributes(dst *ParsedItem, src ParsedItem) {
	if dst.StartTime == nil {
		dst.StartTime = src.StartTime
	}
	if dst.DurationMinutes == nil {
		dst.DurationMinutes = src.DurationMinutes
	}
	if dst.Cost == nil {
		dst.Cost = src.Cost
	}
	if src.Tips != nil {
		if dst.Tips == nil {
			dst.Tips = src.Tips
		} else {
			tips := *dst.Tips + "; " + *src.Tips
			dst.Tips = &tips
		}
	}
}

func extractTime(s string) (string, *string) {
	for _, re := range []*regexp.Regexp{timeAtRe, timeRe} {
		if m := re.FindStringSubmatchIndex(s); m != nil {
			h, _ := strconv.Atoi(s[m[2]:m[3]])
			minute, _ := strconv.Atoi(s[m[4]:m[5]])
			ampm := ""
			if m[6] >= 0 {
				ampm = s[m[6]:m[7]]
			}
			return cut(s, m), formatClock(h, minute, ampm)
		}
	}
	if m := timeCNRe.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute = 30
		} else if m[6] >= 0 {
			minute, _ = strconv.Atoi(s[m[6]:m[7]])
		} else if m[8] >= 0 {
			minute, _ = strconv.Atoi(s[m[8]:m[9]])
		}
		if h < 12 && strings.ContainsAny(s[:m[0]], "下晚") {
			h += 12
		}
		return cut(s, m), formatClock(h, minute, "")
	}
	if m := timeAmPmRe.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		return cut(s, m), formatClock(h, 0, s[m[4]:m[5]])
	}
	return s, nil
}

func formatClock(h, minute int, ampm string) *string {
	switch strings.ToLower(ampm) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	if h < 0 || h > 23 || minute < 0 || minute > 59 {
		return nil
	}
	t := fmt.Sprintf("%02d:%02d", h, minute)
	return &t
}

func extractDuration(s string) (string, *int) {
	for _, re := range []*regexp.Regexp{durationForRe, durationRe} {
		if m := re.FindStringSubmatchIndex(s); m != nil {
			v, _ := strconv.ParseFloat(s[m[2]:m[3]], 64)
			unit := strings.ToLower(s[m[4]:m[5]])
			minutes := v
			if strings.HasPrefix(unit, "h") {
				minutes = v * 60
			}
			return cut(s, m), intPtr(int(math.Round(minutes)))
		}
	}
	if m := durationCNRe.FindStringSubmatchIndex(s); m != nil {
		v, _ := strconv.ParseFloat(s[m[2]:m[3]], 64)
		minutes := v
		if unit := s[m[6]:m[7]]; unit != "分钟" {
			minutes = v * 60
			if m[4] >= 0 {
				minutes += 30
			}
		}
		return cut(s, m), intPtr(int(math.Round(minutes)))
	}
	if m := halfHourCNRe.FindStringIndex(s); m != nil {
		return s[:m[0]] + " " + s[m[1]:], intPtr(30)
	}
	return s, nil
}

func extractCost(s string) (string, *float64) {
	for _, re := range []*regexp.Regexp{costSymbolRe, costWordRe, costCNWordRe, costSuffixRe} {
		if m := re.FindStringSubmatchIndex(s); m != nil {
			v, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
			if err != nil || v < 0 {
				continue
			}
			return cut(s, m), &v
		}
	}
	return s, nil
}

func cut(s string, m []int) string {
	return s[:m[0]] + " " + s[m[1]:]
}

func intPtr(v int) *int {
	return &v
}

var typeKeywords = []struct {
	typ   string
	cjk   []string
	ascii []string
}{
	{"restaurant", []string{"餐厅", "饭店", "饭馆", "小吃", "茶馆", "咖啡", "酒吧"}, []string{"restaurant", "cafe", "café", "teahouse", "bistro", "bar"}},
	{"hotel", []string{"酒店", "宾馆", "民宿", "客栈"}, []string{"hotel", "hostel", "inn"}},
}

// inferType 按名称结尾的关键字猜类别，默认景点
func inferType(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	last := ""
	if len(fields) > 0 {
		last = fields[len(fields)-1]
	}
	for _, tk := range typeKeywords {
		for _, w := range tk.cjk {
			if strings.HasSuffix(name, w) {
				return tk.typ
			}
		}
		for _, w := range tk.ascii {
			if last == w {
				return tk.typ
			}
		}
	}
	return model.DefaultPOIType
}
