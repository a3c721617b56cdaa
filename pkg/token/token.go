package token

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"Atlas/config"
	"Atlas/pkg/errors"
)

const (
	IdentityKey = "uid"
)

var (
	// 这个实例会被 middleware 和 token 包共同使用
	sharedGenerator *jwt.HertzJWTMiddleware
)

func Init() error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       config.Cfg.ServiceName,
		Key:         []byte(config.Cfg.JWTSecret),
		Timeout:     time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute,
		MaxRefresh:  time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})

	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}

	return nil
}

// GetGenerator 获取共享的 token 生成器（供 middleware 使用）
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// GenerateAccessToken 签发访问令牌。账号体系在外部，这里只供联调工具使用
func GenerateAccessToken(userID string, ttl time.Duration) (accessToken string, expiresAt time.Time, err error) {
	if sharedGenerator == nil {
		return "", time.Time{}, errors.ErrTokenGeneratorNotInitialized
	}
	if ttl <= 0 {
		ttl = time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute
	}

	now := time.Now()
	expiresAt = now.Add(ttl)

	claims := jwtv5.MapClaims{
		IdentityKey: userID,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
		"orig_iat":  now.Unix(),
	}

	tokenObj := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	accessToken, err = tokenObj.SignedString([]byte(config.Cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, expiresAt, nil
}
