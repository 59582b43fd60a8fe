package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cashdesk-watcher/internal/models"
	service "cashdesk-watcher/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestStore is the slice of the request repository the API needs.
type RequestStore interface {
	ListPending(since time.Time) ([]models.DepositRequest, error)
	SetReceiptReceived(id uuid.UUID, at time.Time) error
}

// Completer finishes a request once both completion signals are in.
type Completer interface {
	CompleteIfReady(ctx context.Context, id uuid.UUID) (service.Outcome, string, error)
}

type WatcherHandler struct {
	db       *gorm.DB
	requests RequestStore
	recon    Completer
	log      *zap.Logger
}

func NewWatcherHandler(db *gorm.DB, requests RequestStore, recon Completer, log *zap.Logger) *WatcherHandler {
	return &WatcherHandler{db: db, requests: requests, recon: recon, log: log}
}

// Health exposes the liveness keys the watcher upserts (last_idle_at,
// last_poll_at, ...) so operators can probe the loop.
func (h *WatcherHandler) Health(c *gin.Context) {
	var records []models.HealthRecord
	if err := h.db.Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	health := make(map[string]string, len(records))
	for _, r := range records {
		health[r.Key] = r.Value
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "health": health})
}

// ListAudit returns recent match attempts, newest first.
func (h *WatcherHandler) ListAudit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	query := h.db.Model(&models.ReconcileAuditLog{}).Order("created_at DESC").Limit(limit)
	if bank := c.Query("bank"); bank != "" {
		query = query.Where("bank = ?", bank)
	}
	if matched := c.Query("matched"); matched != "" {
		query = query.Where("matched = ?", matched == "1" || matched == "true")
	}

	var entries []models.ReconcileAuditLog
	if err := query.Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// ListPending returns the requests currently inside the matching window.
func (h *WatcherHandler) ListPending(c *gin.Context) {
	reqs, err := h.requests.ListPending(time.Now().Add(-service.MatchWindow))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reqs})
}

// Retry re-runs the completion phase for a bank_received request whose
// gateway call failed earlier.
func (h *WatcherHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	outcome, note, err := h.recon.CompleteIfReady(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome.String(), "note": note})
}

// ReceiptReceived is the hook the external receipt-upload flow calls
// once the user's photo is accepted; it records the signal and finishes
// the request if the bank money already arrived.
func (h *WatcherHandler) ReceiptReceived(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	if err := h.requests.SetReceiptReceived(id, time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outcome, note, err := h.recon.CompleteIfReady(c.Request.Context(), id)
	if err != nil {
		h.log.Error("completion after receipt failed",
			zap.String("request_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome.String(), "note": note})
}
