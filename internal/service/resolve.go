package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/internal/repository"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/geocoder"
	"Atlas/pkg/logger"
)

const (
	fuzzyCandidateLimit = 20
	// 模糊匹配得分下限
	fuzzyThreshold = 0.7
)

// placeResolver 本地库 → 外部地理编码 → 未解析，逐级回落
type placeResolver struct {
	pois     repository.POIStore
	geocoder geocoder.Client
	timeout  time.Duration
}

func (r *placeResolver) resolve(ctx context.Context, name, typ, destination string) model.Match {
	if typ == "" {
		typ = model.DefaultPOIType
	}

	if m, err := r.resolveLocal(ctx, name, destination); err != nil {
		logger.Logger.Warn("Local POI lookup failed, falling back",
			zap.String("name", name),
			zap.Error(err),
		)
	} else if m != nil {
		return *m
	}

	if m, err := r.resolveExternal(ctx, name, typ, destination); err != nil {
		logger.Logger.Warn("External geocoding failed, item left unresolved",
			zap.String("name", name),
			zap.Error(err),
		)
	} else if m != nil {
		return *m
	}

	return model.UnresolvedMatch{Name: name, Type: typ}
}

func (r *placeResolver) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// resolveLocal 先按名称完全匹配，再在候选里打分
func (r *placeResolver) resolveLocal(ctx context.Context, name, destination string) (*model.LocalMatch, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	exact, err := r.pois.FindPOIsByName(ctx, name)
	if err != nil {
		return nil, upstreamError(ctx, err)
	}
	if len(exact) > 0 {
		best := &exact[0]
		for i := range exact {
			if addressMentions(&exact[i], destination) {
				best = &exact[i]
				break
			}
		}
		m := model.NewLocalMatch(best)
		return &m, nil
	}

	candidates, err := r.pois.SearchPOIs(ctx, name, fuzzyCandidateLimit)
	if err != nil {
		return nil, upstreamError(ctx, err)
	}
	if best := bestFuzzyMatch(name, destination, candidates); best != nil {
		m := model.NewLocalMatch(best)
		return &m, nil
	}
	return nil, nil
}

func (r *placeResolver) resolveExternal(ctx context.Context, name, typ, destination string) (*model.ExternalMatch, error) {
	if r.geocoder == nil {
		return nil, nil
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	place, err := r.geocoder.Resolve(ctx, name, destination)
	if err != nil {
		return nil, upstreamError(ctx, err)
	}
	if place == nil {
		return nil, nil
	}

	resolvedName := strings.TrimSpace(place.Name)
	if resolvedName == "" {
		resolvedName = name
	}
	return &model.ExternalMatch{
		Name:        resolvedName,
		Type:        typ,
		Coordinates: model.Coordinates{Longitude: place.Longitude, Latitude: place.Latitude},
		Address:     place.Address,
	}, nil
}

// upstreamError 超时与依赖故障统一视为 UpstreamUnavailable
func upstreamError(ctx context.Context, err error) error {
	if errors.Is(err, pkgerrors.UpstreamUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return pkgerrors.UpstreamUnavailable.WithMessage("resolution timed out: %v", err)
	}
	return pkgerrors.UpstreamUnavailable.WithMessage("resolution failed: %v", err)
}

// bestFuzzyMatch 得分相同时依次比较：地址包含目的地、名称更短、原有顺序
func bestFuzzyMatch(name, destination string, candidates []model.POI) *model.POI {
	var (
		best      *model.POI
		bestScore float64
		bestDest  bool
	)
	for i := range candidates {
		c := &candidates[i]
		dest := addressMentions(c, destination)
		score := fuzzyScore(name, c.Name)
		if dest {
			score += 0.1
		}
		if score < fuzzyThreshold {
			continue
		}
		switch {
		case best == nil,
			score > bestScore,
			score == bestScore && dest && !bestDest,
			score == bestScore && dest == bestDest && len([]rune(c.Name)) < len([]rune(best.Name)):
			best, bestScore, bestDest = c, score, dest
		}
	}
	return best
}

// fuzzyScore 归一化后相等得 0.95；互相包含时按长度比例 0.5~0.9
func fuzzyScore(query, candidate string) float64 {
	q, c := normalizePlace(query), normalizePlace(candidate)
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 0.95
	}
	if !strings.Contains(c, q) && !strings.Contains(q, c) {
		return 0
	}
	short, long := len([]rune(q)), len([]rune(c))
	if short > long {
		short, long = long, short
	}
	return 0.5 + 0.4*float64(short)/float64(long)
}

// normalizePlace 小写并去掉空白与标点
func normalizePlace(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func addressMentions(p *model.POI, destination string) bool {
	destination = strings.TrimSpace(destination)
	if destination == "" || p.Address == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*p.Address), strings.ToLower(destination))
}
