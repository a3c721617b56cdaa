package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/internal/cache"
	"Atlas/internal/model"
	"Atlas/internal/planparser"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/geocoder"
	"Atlas/pkg/llm"
	"Atlas/pkg/logger"
)

// 全部条目未解析时的处理策略
const (
	PolicyLowConfidence = "low_confidence"
	PolicyReject        = "reject"
)

// ExtractOptions 解析管线参数
type ExtractOptions struct {
	AllUnresolvedPolicy string
	ResolveTimeout      time.Duration
	MaxRawTextLength    int
}

// ExtractService 自由文本 → 候选行程，不做任何写入
type ExtractService struct {
	store    repository.Store
	parser   planparser.Parser
	resolver *placeResolver
	opts     ExtractOptions
}

var (
	extractService *ExtractService
	extractOnce    sync.Once
)

func Extract() *ExtractService {
	extractOnce.Do(func() {
		cfg := config.Cfg
		geo := cache.NewCachedGeocoder(
			geocoder.GetClient(),
			cache.NewProtectedCache("geocode", cfg.GeocodeCacheTTL),
			cache.GeocoderBreaker,
		)
		extractService = NewExtractService(repository.Default(), defaultParser(), geo, ExtractOptions{
			AllUnresolvedPolicy: cfg.AllUnresolvedPolicy,
			ResolveTimeout:      cfg.ResolveTimeout,
			MaxRawTextLength:    cfg.MaxRawTextLength,
		})
	})
	return extractService
}

// defaultParser 配置了大模型时使用大模型，否则使用规则解析
func defaultParser() planparser.Parser {
	if client := llm.GetClient(); client != nil {
		return planparser.NewLLMParser(client)
	}
	return planparser.NewRulesParser()
}

func NewExtractService(store repository.Store, parser planparser.Parser, geo geocoder.Client, opts ExtractOptions) *ExtractService {
	if opts.MaxRawTextLength <= 0 {
		opts.MaxRawTextLength = 12000
	}
	if opts.AllUnresolvedPolicy == "" {
		opts.AllUnresolvedPolicy = PolicyLowConfidence
	}
	return &ExtractService{
		store:  store,
		parser: parser,
		resolver: &placeResolver{
			pois:     store,
			geocoder: geo,
			timeout:  opts.ResolveTimeout,
		},
		opts: opts,
	}
}

// Extract 返回候选行程；文本不可用时返回 *errors.ValidationFailure
func (s *ExtractService) Extract(ctx context.Context, requesterID uuid.UUID, rawText string, itineraryID uuid.UUID) (*model.CandidatePlan, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, pkgerrors.InvalidRequest.WithMessage("raw_text is required")
	}
	if utf8.RuneCountInString(rawText) > s.opts.MaxRawTextLength {
		return nil, pkgerrors.InvalidRequest.WithMessage("raw_text exceeds %d characters", s.opts.MaxRawTextLength)
	}

	it, err := s.store.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	if !it.OwnedBy(requesterID) {
		return nil, pkgerrors.ItineraryNotOwned
	}

	parsed, err := s.parser.Parse(ctx, rawText, planparser.Hint{
		Title:       it.Title,
		Destination: it.Destination,
		Days:        it.Days,
	})
	if err != nil {
		if _, ok := pkgerrors.AsValidationFailure(err); ok {
			logger.Logger.Info("Plan text rejected",
				zap.String("itinerary_id", itineraryID.String()),
				zap.String("parser", s.parser.Name()),
				zap.Error(err),
			)
			return nil, err
		}
		if _, ok := pkgerrors.AsDefinition(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ParserUnavailable, err)
	}

	plan := s.buildPlan(ctx, parsed, it)

	if plan.AllUnresolved() {
		if s.opts.AllUnresolvedPolicy == PolicyReject {
			return nil, planparser.NewFailure(pkgerrors.CodeAllUnresolved, "none of the places could be matched to a known location", rawText)
		}
		plan.LowConfidence = true
	}

	logger.Logger.Info("Plan extracted",
		zap.String("itinerary_id", itineraryID.String()),
		zap.String("parser", s.parser.Name()),
		zap.Int("items", len(plan.Items)),
		zap.Bool("low_confidence", plan.LowConfidence),
	)
	return plan, nil
}

// buildPlan 按抽取顺序逐条解析地点，再按天稳定分组并重排 sort_order
func (s *ExtractService) buildPlan(ctx context.Context, parsed *planparser.ParsedPlan, it *model.Itinerary) *model.CandidatePlan {
	destination := firstNonEmpty(parsed.Destination, it.Destination)

	items := make([]model.CandidateItem, 0, len(parsed.Items))
	for _, p := range parsed.Items {
		items = append(items, model.CandidateItem{
			DayIndex:        p.DayIndex,
			StartTime:       p.StartTime,
			DurationMinutes: p.DurationMinutes,
			Cost:            p.Cost,
			Tips:            p.Tips,
			Match:           s.resolver.resolve(ctx, p.Name, p.Type, destination),
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].DayIndex < items[j].DayIndex })

	maxDay := -1
	order := 0
	for i := range items {
		if items[i].DayIndex != maxDay {
			maxDay = items[i].DayIndex
			order = 0
		}
		order++
		items[i].SortOrder = order
	}

	days := parsed.Days
	if maxDay+1 > days {
		days = maxDay + 1
	}
	if days < 1 {
		days = 1
	}
	if days > model.MaxDays {
		days = model.MaxDays
	}

	return &model.CandidatePlan{
		Title:       firstNonEmpty(parsed.Title, it.Title),
		Destination: destination,
		Days:        days,
		Items:       items,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
