package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"voyago/backend/internal/logger"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/tasks"
)

// RestAdminHandler handles withdrawal review and manual task triggers.
type RestAdminHandler struct {
	walletService services.IWalletService
	taskClient    IAsynqClient
}

// NewRestAdminHandler creates a new RestAdminHandler.
func NewRestAdminHandler(walletService services.IWalletService, taskClient IAsynqClient) *RestAdminHandler {
	return &RestAdminHandler{walletService: walletService, taskClient: taskClient}
}

// ListPendingWithdrawals handles GET /v1/admin/withdrawals, oldest first.
func (h *RestAdminHandler) ListPendingWithdrawals(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	requests, err := h.walletService.ListPendingWithdrawals(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to list withdrawals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requests})
}

type processWithdrawalRequest struct {
	Status        models.WithdrawalStatus `json:"status" binding:"required,oneof=completed rejected"`
	AdminNotes    string                  `json:"admin_notes"`
	Fee           float64                 `json:"fee" binding:"gte=0"`
	PayoutBatchID string                  `json:"payout_batch_id"`
}

// ProcessWithdrawal handles POST /v1/admin/withdrawals/:id/process
func (h *RestAdminHandler) ProcessWithdrawal(c *gin.Context) {
	requestID, ok := parseIDParam(c, "id", "withdrawal")
	if !ok {
		return
	}
	var req processWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be completed or rejected"})
		return
	}

	wr, err := h.walletService.ProcessWithdrawal(c.Request.Context(), requestID, services.WithdrawalDecision{
		Status:        req.Status,
		AdminNotes:    req.AdminNotes,
		Fee:           req.Fee,
		PayoutBatchID: req.PayoutBatchID,
	})
	if err != nil {
		respondError(c, err, "Failed to process withdrawal")
		return
	}

	// The decision is stored; a lost notification must not fail the request.
	task, err := tasks.NewWithdrawalNotifyTask(wr)
	if err == nil {
		_, err = h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue(tasks.QueueDefault))
	}
	if err != nil {
		logger.FromGin(c).Warn("Failed to enqueue withdrawal notification", zap.String("request_id", requestID.String()), zap.Error(err))
	}
	c.JSON(http.StatusOK, wr)
}

var sweepTasks = map[string]string{
	"bookings":    tasks.TypeBookingCompleteDue,
	"withdrawals": tasks.TypeWithdrawalPendingSweep,
}

// RunSweep handles POST /v1/admin/sweeps/:name by enqueuing the sweep now.
func (h *RestAdminHandler) RunSweep(c *gin.Context) {
	taskType, ok := sweepTasks[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown sweep"})
		return
	}
	info, err := h.taskClient.EnqueueContext(c.Request.Context(), asynq.NewTask(taskType, nil), asynq.Queue(tasks.QueueLow))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue sweep"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "type": taskType})
}
