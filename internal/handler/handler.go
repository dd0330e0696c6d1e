// Package handler содержит HTTP-обработчики административного API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/reward-ledger/internal/export"
	"github.com/mmeshcher/reward-ledger/internal/middleware"
	"github.com/mmeshcher/reward-ledger/internal/model"
	"github.com/mmeshcher/reward-ledger/internal/repository"
	"github.com/mmeshcher/reward-ledger/internal/validation"
)

// Service определяет операции движка, используемые HTTP-обработчиками.
type Service interface {
	ApproveWithdrawal(ctx context.Context, id int64) (model.Withdrawal, bool, error)
	AddTask(ctx context.Context, title string, reward int64, link string) (model.Task, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	ListWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Handler реализует административное API.
type Handler struct {
	service   Service
	logger    *zap.Logger
	adminAuth *middleware.AdminAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AdminAuth) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		adminAuth: auth,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type dataResponse struct {
	Users     []model.Account    `json:"users"`
	Tasks     []model.Task       `json:"tasks"`
	Withdraws []model.Withdrawal `json:"withdraws"`
}

// GetData возвращает все счета, задания и заявки на вывод.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.service.ListAccounts(ctx)
	if err != nil {
		h.internalError(w, "list accounts error", err)
		return
	}
	tasks, err := h.service.ListTasks(ctx)
	if err != nil {
		h.internalError(w, "list tasks error", err)
		return
	}
	withdrawals, err := h.service.ListWithdrawals(ctx)
	if err != nil {
		h.internalError(w, "list withdrawals error", err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Users:     nonNil(accounts),
		Tasks:     nonNil(tasks),
		Withdraws: nonNil(withdrawals),
	})
}

// GetStats возвращает агрегаты для панели администратора.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.internalError(w, "stats error", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type approveRequest struct {
	ID int64 `json:"id"`
}

type approveResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Withdrawal *model.Withdrawal `json:"withdrawal,omitempty"`
}

// Approve одобряет заявку на вывод. Повторное одобрение успешно и ничего не меняет.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	wd, changed, err := h.service.ApproveWithdrawal(r.Context(), req.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		case errors.Is(err, repository.ErrInsufficientBalance):
			writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "insufficient balance"})
		default:
			h.logger.Error("approve withdrawal error", zap.Error(err), zap.Int64("withdrawalID", req.ID))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
		}
		return
	}

	resp := approveResponse{Success: true, Withdrawal: &wd}
	if !changed {
		resp.Message = "already approved"
	}
	writeJSON(w, http.StatusOK, resp)
}

type addTaskRequest struct {
	Title  string `json:"title"`
	Reward int64  `json:"reward"`
	Link   string `json:"link"`
}

type addTaskResponse struct {
	Success bool       `json:"success"`
	Task    model.Task `json:"task"`
}

// AddTask добавляет задание в каталог.
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Reward < 0 || !validation.IsValidLink(req.Link) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task"})
		return
	}

	task, err := h.service.AddTask(r.Context(), req.Title, req.Reward, strings.TrimSpace(req.Link))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid task"})
			return
		}
		h.internalError(w, "add task error", err)
		return
	}

	writeJSON(w, http.StatusOK, addTaskResponse{Success: true, Task: task})
}

// Export отдаёт CSV-выгрузку счетов или заявок.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	kind, ok := export.ParseKind(chi.URLParam(r, "type"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid type"})
		return
	}

	var write func(out io.Writer) error
	switch kind {
	case export.KindAccounts:
		accounts, err := h.service.ListAccounts(r.Context())
		if err != nil {
			h.internalError(w, "export accounts error", err)
			return
		}
		write = func(out io.Writer) error { return export.WriteAccounts(out, accounts) }
	case export.KindWithdrawals:
		withdrawals, err := h.service.ListWithdrawals(r.Context())
		if err != nil {
			h.internalError(w, "export withdrawals error", err)
			return
		}
		write = func(out io.Writer) error { return export.WriteWithdrawals(out, withdrawals) }
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+kind.FileName()+`"`)
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil {
		h.logger.Error("write csv error", zap.Error(err), zap.String("type", string(kind)))
	}
}

// Health сообщает, что сервис запущен.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
