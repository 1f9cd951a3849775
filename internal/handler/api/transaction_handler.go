package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/engine"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
	"github.com/alfanzaky/txqueue/pkg/observability"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// QueueInfo describes the queue served by the handler
type QueueInfo struct {
	ID         string
	Durability string
	Backend    string
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	queue          domain.TransactionQueue
	info           QueueInfo
	maxRequestSize int64
	roleGuard      *RoleGuard
	now            func() time.Time
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(queue domain.TransactionQueue, info QueueInfo, maxRequestSize int64) *TransactionHandler {
	return &TransactionHandler{
		queue:          queue,
		info:           info,
		maxRequestSize: maxRequestSize,
		roleGuard:      NewRoleGuard(),
		now:            time.Now,
	}
}

// EnqueueTransaction validates a transaction and hands it to the commit
// engine. The response only confirms the transaction was queued.
func (h *TransactionHandler) EnqueueTransaction(c *gin.Context) {
	if h.maxRequestSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestSize)
	}

	var req domain.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			xresponse.PayloadTooLarge(c, "Request body too large")
			return
		}
		logger.Warn("Invalid request body",
			logger.String("trace_id", observability.GetTraceID(c)),
			logger.ErrorField(err),
		)
		xresponse.BadRequest(c, "Invalid request format")
		return
	}

	transaction, err := req.ToTransaction(h.now())
	if err != nil {
		metrics.RecordEnqueue(h.info.ID, req.Kind, false)
		xresponse.ValidationError(c, err.Error())
		return
	}

	subject, _, _ := h.roleGuard.GetCurrentCaller(c)
	if err := h.queue.Enqueue(transaction); err != nil {
		metrics.RecordEnqueue(h.info.ID, transaction.KindString(), false)
		if errors.Is(err, engine.ErrEngineClosed) {
			xresponse.ServiceUnavailable(c, "Queue is shutting down")
			return
		}
		observability.RecordSystemError(c, "enqueue_failed", "engine", err)
		xresponse.Error(c, http.StatusInternalServerError, xresponse.ErrCodeEnqueueFailed, "Failed to queue transaction")
		return
	}

	metrics.RecordEnqueue(h.info.ID, transaction.KindString(), true)
	observability.LogWithFields(c, "Transaction queued",
		logger.String("transaction_id", transaction.ID.String()),
		logger.String("subject", subject),
		logger.Int64("amount", transaction.Amount),
	)

	xresponse.Accepted(c, "Transaction queued", domain.NewTransactionResponse(transaction))
}

// GetQueueStats returns the current queue state
func (h *TransactionHandler) GetQueueStats(c *gin.Context) {
	xresponse.Success(c, "Queue stats retrieved", domain.QueueStats{
		QueueID:    h.info.ID,
		Durability: h.info.Durability,
		Backend:    h.info.Backend,
		Depth:      h.queue.Depth(),
		Pending:    h.queue.Pending(),
		Running:    h.queue.Running(),
	})
}
