// Package model はドメインモデルを定義する。
package model

import "time"

// Timer はカウントダウン対象の1件のタイマーを表す。
// TitleとTargetDateは常に設定されている。IDとCreatedAtは作成後に変更されない。
type Timer struct {
	ID          string
	Title       string
	TargetDate  time.Time
	Description string // 未指定の場合は空文字列
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimerInput はタイマーの作成・更新時にクライアントから受け取る値。
// TargetDateがゼロ値の場合は未指定として扱う。
type TimerInput struct {
	Title       string
	TargetDate  time.Time
	Description string
}

// IsExpired はnow時点でタイマーの目標日時を過ぎているかを返す。
func (t *Timer) IsExpired(now time.Time) bool {
	return !t.TargetDate.After(now)
}
