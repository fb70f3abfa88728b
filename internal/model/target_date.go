package model

import (
	"fmt"
	"strings"
	"time"
)

// targetDateLayouts はtargetDateとして受け付ける書式。
// タイムゾーンを含まない書式はUTCとして解釈する。
var targetDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTargetDate はRFC 3339、またはタイムゾーンなしの"YYYY-MM-DDTHH:MM[:SS]"形式の日時を解析する。
// 戻り値は常にUTC。
func ParseTargetDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, NewValidationError("targetDate is required")
	}

	for _, layout := range targetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewValidationError(fmt.Sprintf("targetDate is not a valid date: %q", s))
}
