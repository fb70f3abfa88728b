package watch

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/countdown/internal/countdown"
)

// NoticeDuration は通知を表示し続ける時間。
const NoticeDuration = 6 * time.Second

// Render はnow時点の状態を1タイマー1行で書き出す。
// 各行はタイトル、残り時間（期限切れなら"Time's up!"）、相対表現、説明の順。
func Render(w io.Writer, s State, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if len(s.Timers) == 0 {
		fmt.Fprintln(tw, "No timers yet.")
	}
	for _, t := range s.Timers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			singleLine(t.Title),
			countdown.Remaining(now, t.TargetDate),
			countdown.Distance(now, t.TargetDate),
			singleLine(t.Description),
		)
	}

	if s.Notice != "" && now.Sub(s.NoticeAt) < NoticeDuration {
		fmt.Fprintf(tw, "\n%s\n", s.Notice)
	}
	if !s.LastSync.IsZero() {
		fmt.Fprintf(tw, "\nlast sync: %s\n", s.LastSync.Local().Format(time.TimeOnly))
	}

	return tw.Flush()
}

// singleLine は表示が崩れないよう改行とタブを空白に置き換える。
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}
