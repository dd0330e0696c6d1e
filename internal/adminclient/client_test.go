package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

const testKey = "secret"

func TestStats_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/stats" {
			t.Fatalf("path = %s, want /api/stats", r.URL.Path)
		}
		if got := r.Header.Get("X-Admin-Key"); got != testKey {
			t.Fatalf("admin key = %q, want %q", got, testKey)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Stats{Accounts: 3, Withdrawals: 2, PendingWithdrawals: 1, TotalBalance: 30})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, testKey)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	st, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if st.Accounts != 3 || st.PendingWithdrawals != 1 || st.TotalBalance != 30 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestApprove_SendsID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/approve" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			ID int64 `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ID != 12 {
			t.Fatalf("id = %d, want 12", req.ID)
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"already approved"}`))
	}))
	defer ts.Close()

	res, err := NewClient(ts.URL, testKey).Approve(context.Background(), 12)
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if !res.Success || res.Message != "already approved" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestApprove_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, testKey).Approve(context.Background(), 1)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusNotFound || statusErr.Message != "not found" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestAddTask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.Task
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Title != "Follow" || req.Reward != 3 || req.Link != "#" {
			t.Fatalf("unexpected task request: %+v", req)
		}
		req.ID = 4
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "task": req})
	}))
	defer ts.Close()

	task, err := NewClient(ts.URL, testKey).AddTask(context.Background(), "Follow", 3, "#")
	if err != nil {
		t.Fatalf("AddTask error: %v", err)
	}
	if task.ID != 4 {
		t.Fatalf("task id = %d, want 4", task.ID)
	}
}

func TestExport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/export/withdrawals" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("id,userId\n1,2\n"))
	}))
	defer ts.Close()

	var buf bytes.Buffer
	if err := NewClient(ts.URL, testKey).Export(context.Background(), "withdrawals", &buf); err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if buf.String() != "id,userId\n1,2\n" {
		t.Fatalf("body = %q", buf.String())
	}
}

func TestClient_NotConfigured(t *testing.T) {
	if _, err := NewClient("", testKey).Stats(context.Background()); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient("localhost:8080/", testKey)
	if c.baseURL != "http://localhost:8080" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
