package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/countdown/internal/middleware"
	"github.com/hitoshi/countdown/internal/model"
)

// maxRequestBodyBytes はタイマー作成・更新リクエストのボディ上限。
const maxRequestBodyBytes = 1 << 20

// TimerServiceInterface はタイマーハンドラーが必要とするサービスインターフェース。
type TimerServiceInterface interface {
	// List は全タイマーをtargetDateの昇順で返す。
	List(ctx context.Context) ([]*model.Timer, error)
	// Get は指定IDのタイマーを返す。
	Get(ctx context.Context, id string) (*model.Timer, error)
	// Create はタイマーを作成する。
	Create(ctx context.Context, in model.TimerInput) (*model.Timer, error)
	// Update はタイマーを置き換える。
	Update(ctx context.Context, id string, in model.TimerInput) (*model.Timer, error)
	// Delete はタイマーを削除する。存在しなくても成功とする。
	Delete(ctx context.Context, id string) error
}

// TimerHandler はタイマー管理のHTTPハンドラー。
type TimerHandler struct {
	service TimerServiceInterface
}

// NewTimerHandler はTimerHandlerを生成する。
func NewTimerHandler(service TimerServiceInterface) *TimerHandler {
	return &TimerHandler{service: service}
}

// timerRequest はタイマー作成・更新リクエストのボディ。
type timerRequest struct {
	Title       string `json:"title"`
	TargetDate  string `json:"targetDate"`
	Description string `json:"description"`
}

// timerResponse はタイマーのAPIレスポンス。
type timerResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TargetDate  time.Time `json:"targetDate"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// messageResponse は削除成功時のレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// ListTimers はタイマー一覧を返す。
// GET /api/timers
func (h *TimerHandler) ListTimers(w http.ResponseWriter, r *http.Request) {
	timers, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]timerResponse, 0, len(timers))
	for _, t := range timers {
		resp = append(resp, toTimerResponse(t))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetTimer はタイマー詳細を返す。
// GET /api/timers/{id}
func (h *TimerHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	timer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toTimerResponse(timer))
}

// CreateTimer はタイマーを作成する。
// POST /api/timers
func (h *TimerHandler) CreateTimer(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTimerRequest(w, r)
	if !ok {
		return
	}

	timer, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toTimerResponse(timer))
}

// UpdateTimer はタイマーのtitle、targetDate、descriptionを置き換える。
// PUT /api/timers/{id}
func (h *TimerHandler) UpdateTimer(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTimerRequest(w, r)
	if !ok {
		return
	}

	timer, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toTimerResponse(timer))
}

// DeleteTimer はタイマーを削除する。
// DELETE /api/timers/{id}
func (h *TimerHandler) DeleteTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Timer deleted successfully"})
}

// decodeTimerRequest はリクエストボディを解析してTimerInputに変換する。
// 失敗した場合は400レスポンスを書き込み、falseを返す。
func decodeTimerRequest(w http.ResponseWriter, r *http.Request) (model.TimerInput, bool) {
	var req timerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return model.TimerInput{}, false
	}

	targetDate, err := model.ParseTargetDate(req.TargetDate)
	if err != nil {
		handleServiceError(w, r, err)
		return model.TimerInput{}, false
	}

	return model.TimerInput{
		Title:       req.Title,
		TargetDate:  targetDate,
		Description: req.Description,
	}, true
}

func toTimerResponse(t *model.Timer) timerResponse {
	return timerResponse{
		ID:          t.ID,
		Title:       t.Title,
		TargetDate:  t.TargetDate.UTC(),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UTC(),
	}
}
