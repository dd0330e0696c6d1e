package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/middleware"
	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
)

const testKey = "test-secret"

type stubService struct {
	approveResp    model.Withdrawal
	approveChanged bool
	approveErr     error
	approvedID     int64

	addTaskResp model.Task
	addTaskErr  error

	accountsResp []model.Account
	accountsErr  error

	tasksResp []model.Task
	tasksErr  error

	withdrawalsResp []model.Withdrawal
	withdrawalsErr  error

	statsResp model.Stats
	statsErr  error
}

func (s *stubService) ApproveWithdrawal(ctx context.Context, id int64) (model.Withdrawal, bool, error) {
	s.approvedID = id
	return s.approveResp, s.approveChanged, s.approveErr
}

func (s *stubService) AddTask(ctx context.Context, title string, reward int64, link string) (model.Task, error) {
	return s.addTaskResp, s.addTaskErr
}

func (s *stubService) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.accountsResp, s.accountsErr
}

func (s *stubService) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.tasksResp, s.tasksErr
}

func (s *stubService) ListWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	return s.withdrawalsResp, s.withdrawalsErr
}

func (s *stubService) Stats(ctx context.Context) (model.Stats, error) {
	return s.statsResp, s.statsErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger, middleware.NewAdminAuth(testKey))
}

func serve(t *testing.T, h *Handler, method, target string, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(middleware.AdminKeyHeader, testKey)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestApprove_Success(t *testing.T) {
	svc := &stubService{
		approveResp:    model.Withdrawal{ID: 7, AccountID: 1, Amount: 15, Status: model.WithdrawalApproved},
		approveChanged: true,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(approveRequest{ID: 7})
	res := serve(t, h, http.MethodPost, "/api/approve", body)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.approvedID != 7 {
		t.Fatalf("approved id = %d, want 7", svc.approvedID)
	}

	var resp approveResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Message != "" {
		t.Fatalf("response = %+v, want success without message", resp)
	}
}

func TestApprove_AlreadyApproved(t *testing.T) {
	svc := &stubService{
		approveResp:    model.Withdrawal{ID: 7, Status: model.WithdrawalApproved},
		approveChanged: false,
	}
	h := newTestHandler(t, svc)

	res := serve(t, h, http.MethodPost, "/api/approve", []byte(`{"id":7}`))
	defer res.Body.Close()

	var resp approveResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.StatusCode != http.StatusOK || !resp.Success || resp.Message != "already approved" {
		t.Fatalf("got %d %+v, want 200 already approved", res.StatusCode, resp)
	}
}

func TestApprove_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "not found", body: `{"id":9}`, err: repository.ErrWithdrawalNotFound, want: http.StatusNotFound},
		{name: "insufficient", body: `{"id":9}`, err: repository.ErrInsufficientBalance, want: http.StatusPaymentRequired},
		{name: "internal", body: `{"id":9}`, err: context.DeadlineExceeded, want: http.StatusInternalServerError},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "missing id", body: `{}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{approveErr: tt.err})

			res := serve(t, h, http.MethodPost, "/api/approve", []byte(tt.body))
			defer res.Body.Close()

			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}
}

func TestAddTask(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "ok", body: `{"title":"Follow","reward":3,"link":"https://example.com"}`, want: http.StatusOK},
		{name: "placeholder link", body: `{"title":"Watch","reward":1,"link":"#"}`, want: http.StatusOK},
		{name: "negative reward", body: `{"title":"Follow","reward":-3}`, want: http.StatusBadRequest},
		{name: "empty title", body: `{"title":" ","reward":3}`, want: http.StatusBadRequest},
		{name: "bad link", body: `{"title":"Follow","reward":3,"link":"javascript:alert(1)"}`, want: http.StatusBadRequest},
		{name: "reward as string", body: `{"title":"Follow","reward":"3"}`, want: http.StatusBadRequest},
		{name: "service rejects", body: `{"title":"Follow","reward":3}`, err: repository.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "service fails", body: `{"title":"Follow","reward":3}`, err: context.Canceled, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{addTaskResp: model.Task{ID: 4, Title: "Follow", Reward: 3}, addTaskErr: tt.err}
			h := newTestHandler(t, svc)

			res := serve(t, h, http.MethodPost, "/api/add-task", []byte(tt.body))
			defer res.Body.Close()

			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}
}

func TestGetData_EmptyListsAreArrays(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := serve(t, h, http.MethodGet, "/api/data", nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"users", "tasks", "withdraws"} {
		if string(raw[key]) != "[]" {
			t.Fatalf("%s = %s, want []", key, raw[key])
		}
	}
}

func TestGetStats(t *testing.T) {
	svc := &stubService{statsResp: model.Stats{Accounts: 3, Withdrawals: 2, PendingWithdrawals: 1, TotalBalance: 40}}
	h := newTestHandler(t, svc)

	res := serve(t, h, http.MethodGet, "/api/stats", nil)
	defer res.Body.Close()

	var got model.Stats
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != svc.statsResp {
		t.Fatalf("stats = %+v, want %+v", got, svc.statsResp)
	}
}

func TestExport(t *testing.T) {
	svc := &stubService{
		accountsResp:    []model.Account{{ID: 1, DisplayName: "alice", Balance: 5}},
		withdrawalsResp: []model.Withdrawal{{ID: 2, AccountID: 1, Amount: 5, Status: model.WithdrawalPending}},
	}
	h := newTestHandler(t, svc)

	tests := []struct {
		target      string
		want        int
		disposition string
		bodyPrefix  string
	}{
		{"/api/export/users", http.StatusOK, `attachment; filename="accounts.csv"`, "id,user,balance"},
		{"/api/export/withdraws", http.StatusOK, `attachment; filename="withdrawals.csv"`, "id,userId,amount"},
		{"/api/export/tasks", http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			res := serve(t, h, http.MethodGet, tt.target, nil)
			defer res.Body.Close()

			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			if ct := res.Header.Get("Content-Type"); ct != "text/csv" {
				t.Fatalf("content-type = %q, want text/csv", ct)
			}
			if cd := res.Header.Get("Content-Disposition"); cd != tt.disposition {
				t.Fatalf("content-disposition = %q, want %q", cd, tt.disposition)
			}
			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(res.Body); err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.HasPrefix(buf.String(), tt.bodyPrefix) {
				t.Fatalf("body %q does not start with %q", buf.String(), tt.bodyPrefix)
			}
		})
	}
}

func TestRouter_AdminKeyRequired(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats?key="+testKey, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with query key = %d, want %d", rec.Code, http.StatusOK)
	}

	for _, target := range []string{"/health", "/metrics"} {
		req = httptest.NewRequest(http.MethodGet, target, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want %d", target, rec.Code, http.StatusOK)
		}
	}
}
