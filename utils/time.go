package utils

import (
	"strings"
	"time"
)

// NormalizeClock 接受 HH:MM 或 HH:MM:SS，统一成 HH:MM
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}
