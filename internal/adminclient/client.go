// Package adminclient предоставляет клиент административного API сервиса начислений.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/middleware"
	"github.com/mmeshcher/reward-ledger/internal/model"
)

// StatusError описывает ответ API с неуспешным статусом.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.Code, e.Message)
}

// Client инкапсулирует HTTP-взаимодействие с административным API.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// ApproveResult описывает результат одобрения заявки.
type ApproveResult struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Withdrawal *model.Withdrawal `json:"withdrawal,omitempty"`
}

// NewClient создаёт клиент для сервиса по указанному адресу. Адрес без схемы дополняется http://.
func NewClient(baseURL, key string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		key:     key,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Stats запрашивает агрегаты по счетам и заявкам.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/api/stats", nil, &st); err != nil {
		return model.Stats{}, err
	}
	return st, nil
}

// Approve одобряет заявку на вывод.
func (c *Client) Approve(ctx context.Context, id int64) (ApproveResult, error) {
	var res ApproveResult
	body := map[string]int64{"id": id}
	if err := c.doJSON(ctx, http.MethodPost, "/api/approve", body, &res); err != nil {
		return ApproveResult{}, err
	}
	return res, nil
}

// AddTask добавляет задание в каталог.
func (c *Client) AddTask(ctx context.Context, title string, reward int64, link string) (model.Task, error) {
	var res struct {
		Success bool       `json:"success"`
		Task    model.Task `json:"task"`
	}
	body := model.Task{Title: title, Reward: reward, Link: link}
	if err := c.doJSON(ctx, http.MethodPost, "/api/add-task", body, &res); err != nil {
		return model.Task{}, err
	}
	return res.Task, nil
}

// Export копирует CSV-выгрузку указанного типа в w.
func (c *Client) Export(ctx context.Context, kind string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/export/"+url.PathEscape(kind), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if c == nil || c.baseURL == "" {
		return nil, errors.New("admin client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(middleware.AdminKeyHeader, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return nil, &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	return resp, nil
}
