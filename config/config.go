package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort     string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"atlas"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1.0"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"atlas"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 关闭后由 atlasctl migrate 单独执行
	DBAutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	// 只读副本，diff / explore 的读请求走副本
	PostgreSQLReplicaDSNs []string `env:"POSTGRESQL_REPLICA_DSNS" envSeparator:";"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"atlas"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"` // 必填，用于签名 JWT
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"7"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪与指标
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"`

	// 地理编码（高德 place/text）
	GeocoderProvider string        `env:"GEOCODER_PROVIDER" envDefault:"amap"` // amap, none
	AMapKey          string        `env:"AMAP_KEY"`
	AMapBaseURL      string        `env:"AMAP_BASE_URL" envDefault:"https://restapi.amap.com"`
	AMapTimeout      time.Duration `env:"AMAP_TIMEOUT" envDefault:"10s"`
	GeocodeCacheTTL  time.Duration `env:"GEOCODE_CACHE_TTL" envDefault:"24h"`

	// 行程解析：rules 为本地规则解析，deepseek / gemini 走大模型
	PlanParser      string        `env:"PLAN_PARSER" envDefault:"rules"`
	DeepSeekAPIKey  string        `env:"DEEPSEEK_API_KEY"`
	DeepSeekModel   string        `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
	DeepSeekBaseURL string        `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiBaseURL   string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"45s"`

	// 导入管线
	ResolveTimeout      time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"3s"`
	AllUnresolvedPolicy string        `env:"ALL_UNRESOLVED_POLICY" envDefault:"low_confidence"` // low_confidence, reject
	MaxRawTextLength    int           `env:"MAX_RAW_TEXT_LENGTH" envDefault:"12000"`
	ImportLockTTL       time.Duration `env:"IMPORT_LOCK_TTL" envDefault:"30s"`

	// 定时任务
	ForkCountReconcileInterval time.Duration `env:"FORK_COUNT_RECONCILE_INTERVAL" envDefault:"1h"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 由各个进程入口调用，测试不会触发
func Validate() error {
	if Cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch Cfg.AllUnresolvedPolicy {
	case "low_confidence", "reject":
	default:
		return fmt.Errorf("ALL_UNRESOLVED_POLICY must be low_confidence or reject, got %q", Cfg.AllUnresolvedPolicy)
	}

	if Cfg.MaxRawTextLength <= 0 {
		return fmt.Errorf("MAX_RAW_TEXT_LENGTH must be positive")
	}

	if Cfg.GeocoderProvider == "amap" && Cfg.AMapKey == "" {
		log.Printf("WARN: AMAP_KEY is not set, external POI resolution will always fail")
	}

	switch strings.ToLower(Cfg.PlanParser) {
	case "deepseek":
		if Cfg.DeepSeekAPIKey == "" {
			log.Printf("WARN: DEEPSEEK_API_KEY is not set, plan extraction will fail")
		}
	case "gemini":
		if Cfg.GeminiAPIKey == "" {
			log.Printf("WARN: GEMINI_API_KEY is not set, plan extraction will fail")
		}
	}

	return nil
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
