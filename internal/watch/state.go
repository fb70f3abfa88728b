// Package watch はタイマー一覧の定期同期とターミナル表示を提供する。
//
// 表示状態はStateとして明示的に持ち、Apply*関数で新しいStateを返す形で更新する。
// Apply*関数は引数のStateを変更しない。
package watch

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// 通知メッセージ
const (
	NoticeCreated     = "Timer created successfully"
	NoticeUpdated     = "Timer updated successfully"
	NoticeDeleted     = "Timer deleted successfully"
	NoticeFetchFailed = "Failed to fetch timers"
)

// State はクライアント側の表示状態。
type State struct {
	// Timers はtargetDate昇順のタイマー一覧。
	Timers []*model.Timer
	// Notice は一時的に表示する通知。空なら表示しない。
	Notice string
	// NoticeAt はNoticeを設定した時刻。
	NoticeAt time.Time
	// LastSync は最後に一覧の取得に成功した時刻。
	LastSync time.Time
	// Err は直近の取得エラー。成功すればnilに戻る。
	Err error
}

// ApplyList は取得した一覧で状態を丸ごと置き換える。
// 取得エラーと取得失敗の通知は解除する。
func ApplyList(s State, timers []*model.Timer, at time.Time) State {
	s.Timers = sortedCopy(timers)
	s.LastSync = at
	s.Err = nil
	if strings.HasPrefix(s.Notice, NoticeFetchFailed) {
		s.Notice = ""
		s.NoticeAt = time.Time{}
	}
	return s
}

// ApplyFetchError は取得失敗を記録する。一覧は前回のものを保持する。
func ApplyFetchError(s State, err error, at time.Time) State {
	s.Err = err
	s.Notice = NoticeFetchFailed + ": " + err.Error()
	s.NoticeAt = at
	return s
}

// ApplyCreated は作成したタイマーを一覧に追加する。
func ApplyCreated(s State, timer *model.Timer, at time.Time) State {
	timers := make([]*model.Timer, 0, len(s.Timers)+1)
	timers = append(timers, s.Timers...)
	timers = append(timers, timer)

	s.Timers = sortedCopy(timers)
	s.Notice = NoticeCreated
	s.NoticeAt = at
	return s
}

// ApplyUpdated は同じIDのタイマーを置き換える。一覧にない場合は追加しない。
func ApplyUpdated(s State, timer *model.Timer, at time.Time) State {
	timers := make([]*model.Timer, 0, len(s.Timers))
	for _, t := range s.Timers {
		if t.ID == timer.ID {
			timers = append(timers, timer)
			continue
		}
		timers = append(timers, t)
	}

	s.Timers = sortedCopy(timers)
	s.Notice = NoticeUpdated
	s.NoticeAt = at
	return s
}

// ApplyDeleted は指定IDのタイマーを一覧から取り除く。
func ApplyDeleted(s State, id string, at time.Time) State {
	timers := make([]*model.Timer, 0, len(s.Timers))
	for _, t := range s.Timers {
		if t.ID != id {
			timers = append(timers, t)
		}
	}

	s.Timers = timers
	s.Notice = NoticeDeleted
	s.NoticeAt = at
	return s
}

// ApplyNotice は一覧を変えずに通知だけを設定する。
func ApplyNotice(s State, notice string, at time.Time) State {
	s.Notice = notice
	s.NoticeAt = at
	return s
}

// ClearNotice は通知を消す。
func ClearNotice(s State) State {
	s.Notice = ""
	s.NoticeAt = time.Time{}
	return s
}

// sortedCopy はtargetDate昇順（同値はCreatedAt昇順）に並べたコピーを返す。
func sortedCopy(timers []*model.Timer) []*model.Timer {
	out := make([]*model.Timer, len(timers))
	copy(out, timers)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TargetDate.Equal(out[j].TargetDate) {
			return out[i].TargetDate.Before(out[j].TargetDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
