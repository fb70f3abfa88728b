package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitoshi/countdown/internal/client"
	"github.com/hitoshi/countdown/internal/config"
	"github.com/hitoshi/countdown/internal/logger"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/watch"
)

// clearScreen はカーソルを左上に戻して画面を消去するANSIシーケンス。
const clearScreen = "\x1b[H\x1b[2J"

// errUsage はクライアントコマンドの引数不足を表す。
var errUsage = errors.New("invalid arguments")

// timerAPI はクライアントコマンドが使うAPI操作。client.Clientが実装する。
type timerAPI interface {
	watch.Lister
	Create(ctx context.Context, in model.TimerInput) (*model.Timer, error)
	Update(ctx context.Context, id string, in model.TimerInput) (*model.Timer, error)
	Delete(ctx context.Context, id string) error
}

// runClient はクライアント側のサブコマンドを実行する。
// 設定読み込みからAPIクライアントの構築までを行い、各コマンドに振り分ける。
func runClient(logW, out io.Writer, cmd Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	log := logger.Setup(logW, logger.ParseLevel(cfg.LogLevel))

	api := client.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.WatchRequestTimeout}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWatch:
		return runWatch(ctx, os.Stdin, out, api, cfg, log)
	case CommandList:
		return runList(ctx, out, api)
	case CommandAdd, CommandUpdate, CommandDelete:
		m, err := runMutation(ctx, api, cmd, args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s (%s)\n", m.notice, m.id)
		return err
	default:
		return fmt.Errorf("unknown client command %q", cmd)
	}
}

// runWatch はポーリングしながらカウントダウンを1秒ごとに再描画する。
// inから1行ずつ add/update/rm コマンドを受け付け、成功した変更は次のポーリングを待たずに
// 表示へ反映する。ctxがキャンセルされるまで戻らない。
func runWatch(ctx context.Context, in io.Reader, out io.Writer, api timerAPI, cfg *config.ClientConfig, log *slog.Logger) error {
	poller := watch.NewPoller(api, cfg.WatchInterval, cfg.WatchRequestTimeout, log)

	refresh := make(chan struct{}, 1)
	poller.OnUpdate(func(watch.State) {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	// 読み取りはブロックするため別goroutineで行う。終了時に読み取り中でも待たない。
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			execWatchLine(ctx, api, poller, cfg.WatchRequestTimeout, line, log)
			continue
		case <-ticker.C:
		case <-refresh:
		}
		if _, err := io.WriteString(out, clearScreen); err != nil {
			return err
		}
		if err := watch.Render(out, poller.State(), time.Now()); err != nil {
			return err
		}
	}
}

// execWatchLine はwatch中に入力された1行を実行し、結果をpollerの状態に反映する。
// 失敗は通知として表示し、watchは続行する。
func execWatchLine(ctx context.Context, api timerAPI, poller *watch.Poller, timeout time.Duration, line string, log *slog.Logger) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd := ParseCommand(fields)
	switch cmd {
	case CommandAdd, CommandUpdate, CommandDelete:
	default:
		poller.Update(func(s watch.State) watch.State {
			return watch.ApplyNotice(s, fmt.Sprintf("Unknown command %q (add, update, rm)", fields[0]), time.Now())
		})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := runMutation(reqCtx, api, cmd, fields[1:])
	if err != nil {
		log.Warn("watch command failed",
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()),
		)
		poller.Update(func(s watch.State) watch.State {
			return watch.ApplyNotice(s, err.Error(), time.Now())
		})
		return
	}
	poller.Update(func(s watch.State) watch.State { return m.apply(s, time.Now()) })
}

// runList はタイマー一覧を1回取得して表示する。
func runList(ctx context.Context, out io.Writer, api watch.Lister) error {
	timers, err := api.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list timers: %w", err)
	}
	now := time.Now()
	return watch.Render(out, watch.ApplyList(watch.State{}, timers, now), now)
}

// mutation はタイマーを変更したコマンドの結果。
type mutation struct {
	id     string
	notice string
	// apply は変更を表示状態へ反映する。
	apply func(s watch.State, at time.Time) watch.State
}

// runMutation は add/update/delete をAPIに対して実行する。
//
//	add <title> <targetDate> [description...]
//	update <id> <title> <targetDate> [description...]
//	delete <id>
func runMutation(ctx context.Context, api timerAPI, cmd Command, args []string) (mutation, error) {
	switch cmd {
	case CommandAdd:
		if len(args) < 2 {
			return mutation{}, fmt.Errorf("%w: usage: countdown add <title> <targetDate> [description]", errUsage)
		}
		in, err := parseTimerInput(args[0], args[1], args[2:])
		if err != nil {
			return mutation{}, err
		}
		created, err := api.Create(ctx, in)
		if err != nil {
			return mutation{}, fmt.Errorf("failed to create timer: %w", err)
		}
		return mutation{
			id:     created.ID,
			notice: watch.NoticeCreated,
			apply:  func(s watch.State, at time.Time) watch.State { return watch.ApplyCreated(s, created, at) },
		}, nil

	case CommandUpdate:
		if len(args) < 3 {
			return mutation{}, fmt.Errorf("%w: usage: countdown update <id> <title> <targetDate> [description]", errUsage)
		}
		in, err := parseTimerInput(args[1], args[2], args[3:])
		if err != nil {
			return mutation{}, err
		}
		updated, err := api.Update(ctx, args[0], in)
		if err != nil {
			return mutation{}, fmt.Errorf("failed to update timer: %w", err)
		}
		return mutation{
			id:     updated.ID,
			notice: watch.NoticeUpdated,
			apply:  func(s watch.State, at time.Time) watch.State { return watch.ApplyUpdated(s, updated, at) },
		}, nil

	case CommandDelete:
		if len(args) < 1 {
			return mutation{}, fmt.Errorf("%w: usage: countdown delete <id>", errUsage)
		}
		id := args[0]
		if err := api.Delete(ctx, id); err != nil {
			return mutation{}, fmt.Errorf("failed to delete timer: %w", err)
		}
		return mutation{
			id:     id,
			notice: watch.NoticeDeleted,
			apply:  func(s watch.State, at time.Time) watch.State { return watch.ApplyDeleted(s, id, at) },
		}, nil

	default:
		return mutation{}, fmt.Errorf("%q does not modify timers", cmd)
	}
}

// parseTimerInput はコマンドライン引数からTimerInputを組み立てる。
// targetDateはAPIと同じ形式（RFC 3339 または YYYY-MM-DDTHH:MM）を受け付ける。
// 残りの引数は空白で連結して説明にする。
func parseTimerInput(title, targetDate string, rest []string) (model.TimerInput, error) {
	target, err := model.ParseTargetDate(targetDate)
	if err != nil {
		return model.TimerInput{}, err
	}
	return model.TimerInput{
		Title:       title,
		TargetDate:  target,
		Description: strings.Join(rest, " "),
	}, nil
}
