package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"Atlas/pkg/httpclient"
	"Atlas/pkg/logger"
)

// AMapClient 高德 Web 服务 place/text 关键字搜索
type AMapClient struct {
	key     string
	baseURL string
	http    *httpclient.Client
}

func NewAMapClient(key, baseURL string, timeout time.Duration) (*AMapClient, error) {
	hc, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &AMapClient{
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}, nil
}

func (c *AMapClient) Provider() string { return "amap" }

type amapResponse struct {
	Status string    `json:"status"`
	Info   string    `json:"info"`
	POIs   []amapPOI `json:"pois"`
}

type amapPOI struct {
	Name     string          `json:"name"`
	Location string          `json:"location"` // "lon,lat"
	Address  json.RawMessage `json:"address"`  // 为空时高德返回 []
}

func (c *AMapClient) Resolve(ctx context.Context, name, city string) (*Place, error) {
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("keywords", name)
	q.Set("city", city)
	q.Set("offset", "1")
	q.Set("page", "1")
	q.Set("extensions", "base")

	var resp amapResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v3/place/text?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("amap place/text: %w", err)
	}
	if resp.Status != "1" {
		return nil, fmt.Errorf("amap place/text failed: %s", resp.Info)
	}
	if len(resp.POIs) == 0 {
		return nil, nil
	}

	first := resp.POIs[0]
	lon, lat, ok := parseLocation(first.Location)
	if !ok {
		logger.Logger.Warn("AMap returned malformed location",
			zap.String("name", name),
			zap.String("location", first.Location),
		)
		return nil, nil
	}

	place := &Place{
		Name:      first.Name,
		Longitude: lon,
		Latitude:  lat,
		Address:   decodeAddress(first.Address),
	}
	if place.Name == "" {
		place.Name = name
	}
	return place, nil
}

func parseLocation(s string) (float64, float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

func decodeAddress(raw json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
