package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// デフォルト値
const (
	DefaultInterval       = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Lister はタイマー一覧の取得インターフェース。client.Clientが実装する。
type Lister interface {
	List(ctx context.Context) ([]*model.Timer, error)
}

// Poller は一定間隔でタイマー一覧を取得し、Stateを置き換える。
//
// 取得は同時に1件までに制限する。前回の取得が終わっていないティックはスキップし、
// Skippedで数を確認できる。このため応答は発行順に反映される。
type Poller struct {
	lister   Lister
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	inFlight atomic.Bool
	skipped  atomic.Int64
	wg       sync.WaitGroup

	mu       sync.Mutex
	state    State
	onUpdate func(State)
}

// NewPoller はPollerの新しいインスタンスを生成する。
// intervalとtimeoutが0以下の場合はデフォルト値を使用する。
func NewPoller(lister Lister, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// OnUpdate は状態が変わるたびに呼ばれる関数を設定する。Runの前に呼び出すこと。
func (p *Poller) OnUpdate(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Run は起動直後に1回取得し、以降intervalごとに取得する。
// ctxがキャンセルされると、実行中の取得の終了を待ってから戻る。
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("watch poller started", slog.Duration("interval", p.interval))

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Debug("watch poller stopped", slog.Int64("skipped_ticks", p.Skipped()))
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick は取得を1件開始する。前回の取得が実行中の場合は何もせずfalseを返す。
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.fetch(ctx)
	}()
	return true
}

// fetch は一覧を取得して状態に反映する。ctxがキャンセル済みなら結果を捨てる。
func (p *Poller) fetch(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	timers, err := p.lister.List(reqCtx)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.logger.Warn("failed to fetch timers", slog.String("error", err.Error()))
		p.Update(func(s State) State { return ApplyFetchError(s, err, p.now()) })
		return
	}
	p.Update(func(s State) State { return ApplyList(s, timers, p.now()) })
}

// Update はfnで状態を更新する。作成・削除後の楽観的な反映にも使う。
func (p *Poller) Update(fn func(State) State) {
	p.mu.Lock()
	p.state = fn(p.state)
	s, onUpdate := p.state, p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(s)
	}
}

// State は現在の状態を返す。
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Skipped は取得中だったためスキップしたティック数を返す。
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}
