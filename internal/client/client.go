// Package client はタイマーAPIのHTTPクライアントを提供する。
// watch、list、add、update、deleteの各サブコマンドから使用する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

// maxErrorBodyBytes はエラーレスポンスとして読み取るボディの上限。
const maxErrorBodyBytes = 64 << 10

// Error はAPIが2xx以外を返した場合のエラー。
// Messageにはサーバーが返したmessageをそのまま格納する。
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// Client はタイマーAPIのクライアント。並行呼び出しに対して安全。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは"http://localhost:8080"のようなAPIのオリジン。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// timerPayload はAPIのタイマーJSON。
type timerPayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TargetDate  time.Time `json:"targetDate"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p timerPayload) toModel() *model.Timer {
	return &model.Timer{
		ID:          p.ID,
		Title:       p.Title,
		TargetDate:  p.TargetDate.UTC(),
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
	}
}

// inputPayload はタイマー作成・更新リクエストのJSON。
type inputPayload struct {
	Title       string `json:"title"`
	TargetDate  string `json:"targetDate"`
	Description string `json:"description,omitempty"`
}

func newInputPayload(in model.TimerInput) inputPayload {
	return inputPayload{
		Title:       in.Title,
		TargetDate:  in.TargetDate.UTC().Format(time.RFC3339Nano),
		Description: in.Description,
	}
}

// errorPayload はAPIの統一エラーフォーマット。
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// List は全タイマーをtargetDateの昇順で取得する。
func (c *Client) List(ctx context.Context) ([]*model.Timer, error) {
	var payloads []timerPayload
	if err := c.do(ctx, http.MethodGet, "/api/timers", nil, &payloads); err != nil {
		return nil, err
	}

	timers := make([]*model.Timer, 0, len(payloads))
	for _, p := range payloads {
		timers = append(timers, p.toModel())
	}
	return timers, nil
}

// Get は指定IDのタイマーを取得する。
func (c *Client) Get(ctx context.Context, id string) (*model.Timer, error) {
	var p timerPayload
	if err := c.do(ctx, http.MethodGet, timerPath(id), nil, &p); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}

// Create はタイマーを作成し、サーバーが採番したタイマーを返す。
func (c *Client) Create(ctx context.Context, in model.TimerInput) (*model.Timer, error) {
	var p timerPayload
	if err := c.do(ctx, http.MethodPost, "/api/timers", newInputPayload(in), &p); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}

// Update はタイマーを置き換える。
func (c *Client) Update(ctx context.Context, id string, in model.TimerInput) (*model.Timer, error) {
	var p timerPayload
	if err := c.do(ctx, http.MethodPut, timerPath(id), newInputPayload(in), &p); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}

// Delete はタイマーを削除する。存在しないIDでも成功する。
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, timerPath(id), nil, nil)
}

func timerPath(id string) string {
	return "/api/timers/" + url.PathEscape(id)
}

// do はリクエストを送信し、2xxの場合はレスポンスをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("API request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// decodeError はエラーレスポンスを*Errorに変換する。
// ボディが統一フォーマットでない場合はステータス文字列をメッセージにする。
func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var p errorPayload
	if err := json.Unmarshal(data, &p); err == nil && p.Message != "" {
		apiErr.Code = p.Code
		apiErr.Message = p.Message
		return apiErr
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}
