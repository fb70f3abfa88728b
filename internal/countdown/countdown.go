// Package countdown は目標日時までの残り時間を表示用に分解・整形する。
// 時刻に依存する関数はすべてnowを引数に取り、テストで固定できるようにしている。
package countdown

import (
	"fmt"
	"strings"
	"time"
)

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// ExpiredLabel は目標日時を過ぎたタイマーの表示。
const ExpiredLabel = "Time's up!"

// Breakdown は残り時間を日・時・分・秒に分解したもの。
// Expiredがtrueの場合、各要素はすべて0。
type Breakdown struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
	Expired bool
}

// Remaining はnowからtargetまでの残り時間をミリ秒単位で切り捨てて分解する。
// 残りが0以下の場合はExpiredを返す。
func Remaining(now, target time.Time) Breakdown {
	diff := target.Sub(now).Milliseconds()
	if diff <= 0 {
		return Breakdown{Expired: true}
	}

	return Breakdown{
		Days:    diff / msPerDay,
		Hours:   (diff / msPerHour) % 24,
		Minutes: (diff / msPerMinute) % 60,
		Seconds: (diff / msPerSecond) % 60,
	}
}

// String は"1d 1h 1m 1s"形式で残り時間を返す。
// 0の要素は省略し、1秒未満の場合は"0s"とする。
func (b Breakdown) String() string {
	if b.Expired {
		return ExpiredLabel
	}

	parts := make([]string, 0, 4)
	for _, p := range []struct {
		value int64
		unit  string
	}{
		{b.Days, "d"},
		{b.Hours, "h"},
		{b.Minutes, "m"},
		{b.Seconds, "s"},
	} {
		if p.value > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", p.value, p.unit))
		}
	}

	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
