package geocoder

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"Atlas/config"
	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/logger"
)

// Place 外部地理编码结果
type Place struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Address   *string `json:"address"`
}

// Client 地理编码客户端接口
type Client interface {
	Provider() string
	// Resolve 按名称与城市查询，没有结果时返回 nil, nil
	Resolve(ctx context.Context, name, city string) (*Place, error)
}

var (
	geoClient Client
	geoOnce   sync.Once
	geoErr    error
)

// Init 初始化地理编码客户端
func Init() error {
	geoOnce.Do(func() {
		cfg := config.Cfg

		switch strings.ToLower(cfg.GeocoderProvider) {
		case "amap":
			if cfg.AMapKey == "" {
				// 没有 key 时外部解析全部落空，不阻止服务启动
				logger.Logger.Warn("AMAP_KEY not set, external geocoding disabled")
				geoClient = NoopClient{}
				return
			}
			geoClient, geoErr = NewAMapClient(cfg.AMapKey, cfg.AMapBaseURL, cfg.AMapTimeout)
		case "none", "":
			geoClient = NoopClient{}
		case "mock":
			geoClient = NewMockClient()
		default:
			geoErr = pkgerrors.ErrUnsupportedGeocoderProvider
		}

		if geoErr != nil {
			logger.Logger.Error("Failed to initialize geocoder", zap.Error(geoErr))
			return
		}

		logger.Logger.Info("Geocoder initialized",
			zap.String("provider", geoClient.Provider()),
		)
	})

	return geoErr
}

func GetClient() Client {
	if geoClient == nil {
		panic("geocoder not initialized, call geocoder.Init() first")
	}
	return geoClient
}

// NoopClient 永远没有结果
type NoopClient struct{}

func (NoopClient) Provider() string { return "none" }

func (NoopClient) Resolve(ctx context.Context, name, city string) (*Place, error) {
	return nil, nil
}
