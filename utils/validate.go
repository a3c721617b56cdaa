package utils

import (
	"strings"
	"unicode/utf8"
)

// ValidateCoordinates 经纬度范围检查
func ValidateCoordinates(longitude, latitude float64) bool {
	return longitude >= -180 && longitude <= 180 && latitude >= -90 && latitude <= 90
}

// ValidateText 去掉首尾空白后非空且不超过 maxRunes 个字符
func ValidateText(s string, maxRunes int) bool {
	s = strings.TrimSpace(s)
	return s != "" && utf8.RuneCountInString(s) <= maxRunes
}
