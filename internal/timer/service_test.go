package timer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/model"
)

// --- Service テスト用モック ---

// mockTimerRepo はテスト用のインメモリTimerRepository。
type mockTimerRepo struct {
	mu        sync.Mutex
	timers    map[string]*model.Timer
	listCalls atomic.Int32
	listDelay time.Duration
	err       error
}

func newMockTimerRepo() *mockTimerRepo {
	return &mockTimerRepo{timers: make(map[string]*model.Timer)}
}

func (m *mockTimerRepo) Create(_ context.Context, timer *model.Timer) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *timer
	m.timers[timer.ID] = &cp
	return nil
}

func (m *mockTimerRepo) ListAll(_ context.Context) ([]*model.Timer, error) {
	m.listCalls.Add(1)
	if m.listDelay > 0 {
		time.Sleep(m.listDelay)
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*model.Timer, 0, len(m.timers))
	for _, t := range m.timers {
		cp := *t
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].TargetDate.Before(list[j].TargetDate)
	})
	return list, nil
}

func (m *mockTimerRepo) FindByID(_ context.Context, id string) (*model.Timer, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTimerRepo) Update(_ context.Context, timer *model.Timer) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[timer.ID]; !ok {
		return false, nil
	}
	cp := *timer
	m.timers[timer.ID] = &cp
	return true, nil
}

func (m *mockTimerRepo) DeleteByID(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, id)
	return nil
}

func (m *mockTimerRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.timers {
		if t.TargetDate.Before(cutoff) {
			delete(m.timers, id)
			n++
		}
	}
	return n, nil
}

// mockListCache はテスト用のListCache。
type mockListCache struct {
	mu          sync.Mutex
	list        []*model.Timer
	getErr      error
	invalidates int
}

func (m *mockListCache) GetList(_ context.Context) ([]*model.Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.list, nil
}

func (m *mockListCache) SetList(_ context.Context, timers []*model.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = timers
	return nil
}

func (m *mockListCache) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = nil
	m.invalidates++
	return nil
}

// countingMetrics は呼び出し回数を記録するMetricsCollector。
type countingMetrics struct {
	metrics.Nop
	created, updated, deleted atomic.Int32
	purged                    atomic.Int64
	storeErrors               atomic.Int32
	hits, misses              atomic.Int32
}

func (c *countingMetrics) RecordTimerCreated()        { c.created.Add(1) }
func (c *countingMetrics) RecordTimerUpdated()        { c.updated.Add(1) }
func (c *countingMetrics) RecordTimerDeleted()        { c.deleted.Add(1) }
func (c *countingMetrics) RecordTimersPurged(n int64) { c.purged.Add(n) }
func (c *countingMetrics) RecordStoreError(string)    { c.storeErrors.Add(1) }
func (c *countingMetrics) RecordCacheHit()            { c.hits.Add(1) }
func (c *countingMetrics) RecordCacheMiss()           { c.misses.Add(1) }

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *mockTimerRepo, cache ListCache) (*Service, *countingMetrics) {
	m := &countingMetrics{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := NewService(repo, cache, m, logger)
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	repo := newMockTimerRepo()
	svc, m := newTestService(repo, nil)

	jst := time.FixedZone("JST", 9*60*60)
	target := time.Date(2030, 1, 1, 9, 0, 0, 0, jst)

	timer, err := svc.Create(context.Background(), model.TimerInput{
		Title:       "  New Year  ",
		TargetDate:  target,
		Description: " party ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if timer.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if timer.Title != "New Year" {
		t.Errorf("Title = %q, want %q", timer.Title, "New Year")
	}
	if timer.Description != "party" {
		t.Errorf("Description = %q, want %q", timer.Description, "party")
	}
	if !timer.TargetDate.Equal(target) || timer.TargetDate.Location() != time.UTC {
		t.Errorf("TargetDate = %v, want %v in UTC", timer.TargetDate, target)
	}
	if !timer.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", timer.CreatedAt, fixedNow)
	}
	if _, ok := repo.timers[timer.ID]; !ok {
		t.Error("expected timer to be stored")
	}
	if m.created.Load() != 1 {
		t.Errorf("created metric = %d, want 1", m.created.Load())
	}
}

func TestCreate_AssignsDistinctIDs(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)
	in := model.TimerInput{Title: "x", TargetDate: fixedNow.Add(time.Hour)}

	a, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("expected distinct IDs, both were %q", a.ID)
	}
}

func TestCreate_StoresTextVerbatim(t *testing.T) {
	tests := []struct {
		title       string
		description string
	}{
		{"Release <v2> launch", "ships <b>today</b>"},
		{"Tom &amp; Jerry", "Q&A"},
		{"<script>x</script>", "a  b\tc"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			repo := newMockTimerRepo()
			svc, _ := newTestService(repo, nil)

			created, err := svc.Create(context.Background(), model.TimerInput{
				Title:       "  " + tt.title + "\n",
				TargetDate:  fixedNow.Add(time.Hour),
				Description: tt.description,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if created.Title != tt.title {
				t.Errorf("Title = %q, want %q", created.Title, tt.title)
			}
			if created.Description != tt.description {
				t.Errorf("Description = %q, want %q", created.Description, tt.description)
			}

			list, err := svc.List(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(list) != 1 || list[0].Title != tt.title || list[0].Description != tt.description {
				t.Errorf("listed timers = %+v, want the input text unchanged", list)
			}
		})
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input model.TimerInput
	}{
		{"empty title", model.TimerInput{Title: "", TargetDate: fixedNow}},
		{"whitespace title", model.TimerInput{Title: "   ", TargetDate: fixedNow}},
		{"missing target date", model.TimerInput{Title: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockTimerRepo()
			svc, m := newTestService(repo, nil)

			_, err := svc.Create(context.Background(), tt.input)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if len(repo.timers) != 0 {
				t.Error("store must not change on validation error")
			}
			if m.created.Load() != 0 {
				t.Error("created metric must not be recorded")
			}
		})
	}
}

func TestCreate_PastTargetDateAllowed(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)

	timer, err := svc.Create(context.Background(), model.TimerInput{
		Title:      "already gone",
		TargetDate: fixedNow.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !timer.IsExpired(fixedNow) {
		t.Error("expected timer to be expired")
	}
}

func TestCreate_StoreError(t *testing.T) {
	repo := newMockTimerRepo()
	repo.err = errors.New("connection refused")
	svc, m := newTestService(repo, nil)

	_, err := svc.Create(context.Background(), model.TimerInput{Title: "x", TargetDate: fixedNow})
	assertAPIErrorCode(t, err, model.ErrCodeStore)
	if !errors.Is(err, repo.err) {
		t.Error("expected store error to wrap cause")
	}
	if m.storeErrors.Load() != 1 {
		t.Errorf("store error metric = %d, want 1", m.storeErrors.Load())
	}
}

// --- List ---

func TestList_OrderedByTargetDate(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)
	ctx := context.Background()

	for _, d := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		if _, err := svc.Create(ctx, model.TimerInput{Title: d.String(), TargetDate: fixedNow.Add(d)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].TargetDate.Before(list[i-1].TargetDate) {
			t.Errorf("list not ordered at %d", i)
		}
	}
}

func TestList_EmptyStore(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestList_UsesCache(t *testing.T) {
	repo := newMockTimerRepo()
	cache := &mockListCache{}
	svc, m := newTestService(repo, cache)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := repo.listCalls.Load(); got != 1 {
		t.Errorf("store list calls = %d, want 1", got)
	}
	if m.misses.Load() != 1 || m.hits.Load() != 1 {
		t.Errorf("misses = %d, hits = %d, want 1 and 1", m.misses.Load(), m.hits.Load())
	}
}

func TestList_CacheReadErrorFallsBackToStore(t *testing.T) {
	repo := newMockTimerRepo()
	cache := &mockListCache{getErr: errors.New("redis down")}
	svc, _ := newTestService(repo, cache)

	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listCalls.Load() != 1 {
		t.Errorf("store list calls = %d, want 1", repo.listCalls.Load())
	}
}

func TestList_ConcurrentMissesCoalesced(t *testing.T) {
	repo := newMockTimerRepo()
	repo.listDelay = 50 * time.Millisecond
	svc, _ := newTestService(repo, &mockListCache{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.List(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := repo.listCalls.Load(); got >= 10 {
		t.Errorf("store list calls = %d, expected concurrent misses to be coalesced", got)
	}
}

func TestList_MutationInvalidatesCache(t *testing.T) {
	repo := newMockTimerRepo()
	cache := &mockListCache{}
	svc, _ := newTestService(repo, cache)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, err := svc.Create(ctx, model.TimerInput{Title: "x", TargetDate: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("expected list to reflect created timer, got %v", list)
	}
	if cache.invalidates != 1 {
		t.Errorf("invalidates = %d, want 1", cache.invalidates)
	}
}

// --- Get ---

func TestGet_Found(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)
	created, err := svc.Create(context.Background(), model.TimerInput{Title: "x", TargetDate: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID || got.Title != "x" {
		t.Errorf("got %+v, want %+v", got, created)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)

	for _, id := range []string{"6f1c0c3e-8d2a-4b7e-9a51-0d7f3c2b1a90", "not-a-uuid", ""} {
		_, err := svc.Get(context.Background(), id)
		assertAPIErrorCode(t, err, model.ErrCodeTimerNotFound)
	}
}

// --- Update ---

func TestUpdate_Success(t *testing.T) {
	svc, m := newTestService(newMockTimerRepo(), nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, model.TimerInput{Title: "old", TargetDate: fixedNow, Description: "d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }
	newTarget := fixedNow.Add(48 * time.Hour)

	updated, err := svc.Update(ctx, created.ID, model.TimerInput{Title: "new", TargetDate: newTarget})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("ID changed: %q -> %q", created.ID, updated.ID)
	}
	if updated.Title != "new" || updated.Description != "" || !updated.TargetDate.Equal(newTarget) {
		t.Errorf("unexpected updated timer: %+v", updated)
	}
	if !updated.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt changed: %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, later)
	}
	if m.updated.Load() != 1 {
		t.Errorf("updated metric = %d, want 1", m.updated.Load())
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)

	_, err := svc.Update(context.Background(), "6f1c0c3e-8d2a-4b7e-9a51-0d7f3c2b1a90",
		model.TimerInput{Title: "x", TargetDate: fixedNow})
	assertAPIErrorCode(t, err, model.ErrCodeTimerNotFound)
}

func TestUpdate_ValidationError(t *testing.T) {
	repo := newMockTimerRepo()
	svc, _ := newTestService(repo, nil)
	created, err := svc.Create(context.Background(), model.TimerInput{Title: "keep", TargetDate: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(context.Background(), created.ID, model.TimerInput{Title: " ", TargetDate: fixedNow})
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
	if repo.timers[created.ID].Title != "keep" {
		t.Error("store must not change on validation error")
	}
}

// --- Delete ---

func TestDelete_RemovesTimer(t *testing.T) {
	repo := newMockTimerRepo()
	cache := &mockListCache{}
	svc, m := newTestService(repo, cache)
	ctx := context.Background()
	created, err := svc.Create(ctx, model.TimerInput{Title: "x", TargetDate: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); err == nil {
		t.Error("expected timer to be gone")
	}
	if m.deleted.Load() != 1 {
		t.Errorf("deleted metric = %d, want 1", m.deleted.Load())
	}
	if cache.invalidates != 2 {
		t.Errorf("invalidates = %d, want 2", cache.invalidates)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	svc, _ := newTestService(newMockTimerRepo(), nil)
	ctx := context.Background()

	for _, id := range []string{"6f1c0c3e-8d2a-4b7e-9a51-0d7f3c2b1a90", "not-a-uuid"} {
		if err := svc.Delete(ctx, id); err != nil {
			t.Errorf("Delete(%q) error = %v, want nil", id, err)
		}
		if err := svc.Delete(ctx, id); err != nil {
			t.Errorf("second Delete(%q) error = %v, want nil", id, err)
		}
	}
}

func TestDelete_StoreError(t *testing.T) {
	repo := newMockTimerRepo()
	repo.err = errors.New("timeout")
	svc, _ := newTestService(repo, nil)

	err := svc.Delete(context.Background(), "6f1c0c3e-8d2a-4b7e-9a51-0d7f3c2b1a90")
	assertAPIErrorCode(t, err, model.ErrCodeStore)
}

// --- PurgeExpired ---

func TestPurgeExpired(t *testing.T) {
	repo := newMockTimerRepo()
	svc, m := newTestService(repo, nil)
	ctx := context.Background()

	inputs := []time.Time{
		fixedNow.Add(-40 * 24 * time.Hour),
		fixedNow.Add(-10 * 24 * time.Hour),
		fixedNow.Add(24 * time.Hour),
	}
	for _, target := range inputs {
		if _, err := svc.Create(ctx, model.TimerInput{Title: "x", TargetDate: target}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deleted, err := svc.PurgeExpired(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if len(repo.timers) != 2 {
		t.Errorf("remaining = %d, want 2", len(repo.timers))
	}
	if m.purged.Load() != 1 {
		t.Errorf("purged metric = %d, want 1", m.purged.Load())
	}
}
