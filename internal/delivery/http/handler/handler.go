package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/pagestate-service/internal/delivery/http/request"
	"github.com/user/pagestate-service/internal/delivery/http/response"
	"github.com/user/pagestate-service/internal/entity"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// BlockService is the slice of ban protection the admin API drives.
type BlockService interface {
	ActiveBlocks(ctx context.Context) ([]*entity.HostnameBlock, error)
	ActiveBlock(ctx context.Context, host string) (*entity.HostnameBlock, error)
	BlockHost(ctx context.Context, host string, account entity.Account, reason string, blockType entity.ErrorType, minutes int) (*entity.HostnameBlock, error)
	UnblockHostname(ctx context.Context, host string) (bool, error)
	HandleAccountBlockOn(ctx context.Context, host string, account entity.Account, reason string, blockType entity.ErrorType) *entity.HostnameBlock
	AccountEvents(ctx context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error)
}

// HealthCheck pings one backing store.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	blocks BlockService
	checks map[string]HealthCheck
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(blocks BlockService, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		blocks: blocks,
		checks: checks,
		logger: logger.Named("http"),
		now:    time.Now,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Error("Health check failed", zap.String("store", name), zap.Error(err))
			status[name] = "unhealthy"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "healthy"
	}
	h.writeJSON(w, code, status)
}

func (h *Handler) HandleListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.blocks.ActiveBlocks(r.Context())
	if err != nil {
		h.logger.Error("Failed to list hostname blocks", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	now := h.now()
	resp := response.HostBlockListResponse{Count: len(blocks), Blocks: make([]response.HostBlockResponse, 0, len(blocks))}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, response.NewHostBlock(b, now))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetBlock(w http.ResponseWriter, r *http.Request) {
	host := hostnameParam(r)
	block, err := h.blocks.ActiveBlock(r.Context(), host)
	if err != nil {
		h.logger.Error("Failed to read hostname block", zap.String("hostname", host), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	resp := response.HostStatusResponse{Hostname: host}
	if block != nil {
		b := response.NewHostBlock(block, h.now())
		resp.Blocked = true
		resp.Block = &b
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleBlockHost(w http.ResponseWriter, r *http.Request) {
	var req request.BlockHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	blockType := entity.ErrorType(req.BlockType)
	if blockType == "" {
		blockType = entity.ErrorTypeAccountLocked
	}
	if !blockType.Valid() {
		h.writeJSONError(w, "Unknown block_type", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes < 0 {
		h.writeJSONError(w, "duration_minutes must not be negative", http.StatusBadRequest)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual block"
	}

	host := hostnameParam(r)
	block, err := h.blocks.BlockHost(r.Context(), host, entity.Account{ID: req.UserID}, reason, blockType, req.DurationMinutes)
	if err != nil {
		h.logger.Error("Failed to block hostname", zap.String("hostname", host), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, response.NewHostBlock(block, h.now()))
}

func (h *Handler) HandleUnblockHost(w http.ResponseWriter, r *http.Request) {
	host := hostnameParam(r)
	removed, err := h.blocks.UnblockHostname(r.Context(), host)
	if err != nil {
		h.logger.Error("Failed to unblock hostname", zap.String("hostname", host), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !removed {
		h.writeJSONError(w, "No block found for hostname", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleReportAccountBlock(w http.ResponseWriter, r *http.Request) {
	var req request.AccountBlockEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	errType := entity.ErrorType(req.Type)
	if !errType.Valid() {
		h.writeJSONError(w, "Unknown type", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Hostname) == "" {
		h.writeJSONError(w, "hostname is required", http.StatusBadRequest)
		return
	}

	account := entity.Account{ID: chi.URLParam(r, "userID")}
	block := h.blocks.HandleAccountBlockOn(r.Context(), req.Hostname, account, req.Reason, errType)
	resp := response.ReportAccountBlockResponse{Status: "recorded"}
	if block == nil {
		// event recorded, hostname block could not be written
		resp.Status = "recorded_without_block"
	} else {
		b := response.NewHostBlock(block, h.now())
		resp.Block = &b
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleListAccountBlocks(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventLimit)
	}

	userID := chi.URLParam(r, "userID")
	events, err := h.blocks.AccountEvents(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list account block events", zap.String("user_id", userID), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewAccountBlockEvents(userID, events))
}

func hostnameParam(r *http.Request) string {
	return strings.ToLower(chi.URLParam(r, "hostname"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
