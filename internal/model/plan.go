package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MatchSource 地点匹配来源，外部来源在接口上沿用 amap
type MatchSource string

const (
	MatchSourceLocal      MatchSource = "local"
	MatchSourceExternal   MatchSource = "amap"
	MatchSourceUnresolved MatchSource = "unresolved"
)

// Match 地点匹配结果，只有下面三种实现
type Match interface {
	Source() MatchSource
	PlaceName() string
	PlaceType() string
	isMatch()
}

// LocalMatch 命中本地 POI 库，附带一份值拷贝，导入时 POI 已被删除可以据此重建
type LocalMatch struct {
	POIID        uuid.UUID
	Name         string
	Type         string
	Coordinates  *Coordinates
	Address      *string
	OpeningHours *string
	TicketPrice  *float64
}

// ExternalMatch 外部地理编码命中，还不是 POI 库成员
type ExternalMatch struct {
	Name        string
	Type        string
	Coordinates Coordinates
	Address     *string
}

// UnresolvedMatch 只保留原始地名
type UnresolvedMatch struct {
	Name string
	Type string
}

func (LocalMatch) Source() MatchSource      { return MatchSourceLocal }
func (ExternalMatch) Source() MatchSource   { return MatchSourceExternal }
func (UnresolvedMatch) Source() MatchSource { return MatchSourceUnresolved }

func (m LocalMatch) PlaceName() string      { return m.Name }
func (m ExternalMatch) PlaceName() string   { return m.Name }
func (m UnresolvedMatch) PlaceName() string { return m.Name }

func (m LocalMatch) PlaceType() string      { return m.Type }
func (m ExternalMatch) PlaceType() string   { return m.Type }
func (m UnresolvedMatch) PlaceType() string { return m.Type }

func (LocalMatch) isMatch()      {}
func (ExternalMatch) isMatch()   {}
func (UnresolvedMatch) isMatch() {}

// NewLocalMatch 从 POI 生成本地匹配
func NewLocalMatch(p *POI) LocalMatch {
	return LocalMatch{
		POIID:        p.ID,
		Name:         p.Name,
		Type:         p.Type,
		Coordinates:  p.Coordinates(),
		Address:      p.Address,
		OpeningHours: p.OpeningHours,
		TicketPrice:  p.TicketPrice,
	}
}

// CandidatePlan 解析结果，导入前只存在于内存和客户端
type CandidatePlan struct {
	Title         string          `json:"title"`
	Destination   string          `json:"destination"`
	Days          int             `json:"days"`
	Items         []CandidateItem `json:"items"`
	LowConfidence bool            `json:"low_confidence"`
}

// CandidateItem DayIndex 从 0 开始，SortOrder 每天从 1 开始
type CandidateItem struct {
	DayIndex        int
	SortOrder       int
	StartTime       *string
	DurationMinutes *int
	Cost            *float64
	Tips            *string
	Match           Match
}

type candidateItemWire struct {
	DayIndex        int       `json:"day_index"`
	SortOrder       int       `json:"sort_order"`
	StartTime       *string   `json:"start_time"`
	DurationMinutes *int      `json:"duration_minutes"`
	Cost            *float64  `json:"cost"`
	Tips            *string   `json:"tips"`
	POI             *matchPOI `json:"poi"`
}

// matchPOI 客户端约定的 poi 对象
type matchPOI struct {
	POIID        *uuid.UUID `json:"poi_id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Longitude    *float64   `json:"longitude"`
	Latitude     *float64   `json:"latitude"`
	Address      *string    `json:"address"`
	OpeningHours *string    `json:"opening_hours"`
	TicketPrice  *float64   `json:"ticket_price"`
	MatchSource  string     `json:"match_source"`
}

func (c CandidateItem) MarshalJSON() ([]byte, error) {
	w := candidateItemWire{
		DayIndex:        c.DayIndex,
		SortOrder:       c.SortOrder,
		StartTime:       c.StartTime,
		DurationMinutes: c.DurationMinutes,
		Cost:            c.Cost,
		Tips:            c.Tips,
	}
	if c.Match != nil {
		w.POI = encodeMatch(c.Match)
	}
	return json.Marshal(w)
}

func (c *CandidateItem) UnmarshalJSON(data []byte) error {
	var w candidateItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.POI == nil {
		return fmt.Errorf("item day %d sort %d: poi is required", w.DayIndex, w.SortOrder)
	}
	m, err := decodeMatch(w.POI)
	if err != nil {
		return fmt.Errorf("item day %d sort %d: %w", w.DayIndex, w.SortOrder, err)
	}

	*c = CandidateItem{
		DayIndex:        w.DayIndex,
		SortOrder:       w.SortOrder,
		StartTime:       w.StartTime,
		DurationMinutes: w.DurationMinutes,
		Cost:            w.Cost,
		Tips:            w.Tips,
		Match:           m,
	}
	return nil
}

func encodeMatch(m Match) *matchPOI {
	p := &matchPOI{
		Name:        m.PlaceName(),
		Type:        m.PlaceType(),
		MatchSource: string(m.Source()),
	}
	switch v := m.(type) {
	case LocalMatch:
		id := v.POIID
		p.POIID = &id
		if v.Coordinates != nil {
			p.Longitude, p.Latitude = &v.Coordinates.Longitude, &v.Coordinates.Latitude
		}
		p.Address = v.Address
		p.OpeningHours = v.OpeningHours
		p.TicketPrice = v.TicketPrice
	case ExternalMatch:
		p.Longitude, p.Latitude = &v.Coordinates.Longitude, &v.Coordinates.Latitude
		p.Address = v.Address
	}
	return p
}

func decodeMatch(p *matchPOI) (Match, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("poi name is required")
	}
	typ := strings.TrimSpace(p.Type)
	if typ == "" {
		typ = DefaultPOIType
	}

	switch strings.ToLower(p.MatchSource) {
	case string(MatchSourceLocal):
		if p.POIID == nil || *p.POIID == uuid.Nil {
			return nil, fmt.Errorf("local match requires poi_id")
		}
		m := LocalMatch{
			POIID:        *p.POIID,
			Name:         name,
			Type:         typ,
			Address:      p.Address,
			OpeningHours: p.OpeningHours,
			TicketPrice:  p.TicketPrice,
		}
		if p.Longitude != nil && p.Latitude != nil {
			m.Coordinates = &Coordinates{Longitude: *p.Longitude, Latitude: *p.Latitude}
		}
		return m, nil
	case string(MatchSourceExternal), "external":
		if p.Longitude == nil || p.Latitude == nil {
			return nil, fmt.Errorf("external match requires coordinates")
		}
		return ExternalMatch{
			Name:        name,
			Type:        typ,
			Coordinates: Coordinates{Longitude: *p.Longitude, Latitude: *p.Latitude},
			Address:     p.Address,
		}, nil
	case string(MatchSourceUnresolved):
		return UnresolvedMatch{Name: name, Type: typ}, nil
	default:
		return nil, fmt.Errorf("unknown match_source %q", p.MatchSource)
	}
}

// AllUnresolved 没有任何条目被解析
func (p *CandidatePlan) AllUnresolved() bool {
	for _, it := range p.Items {
		if it.Match.Source() != MatchSourceUnresolved {
			return false
		}
	}
	return len(p.Items) > 0
}
