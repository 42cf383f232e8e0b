package handlers

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"

	"triaright-platform/errors"
	"triaright-platform/http/response"
	"triaright-platform/logger"
	"triaright-platform/services/kafka"
)

// DLQStore is the read and resolve side of the dead letter queue.
type DLQStore interface {
	ListUnresolved(ctx context.Context, limit int, retryable bool) ([]kafka.DLQMessage, error)
	Resolve(ctx context.Context, messageID, notes string) error
	Stats(ctx context.Context) (kafka.DLQStats, error)
}

// DLQRetrier replays one dead letter.
type DLQRetrier interface {
	RetryOne(ctx context.Context, messageID string) (bool, error)
}

type DLQHandler struct {
	store   DLQStore
	retrier DLQRetrier
}

func NewDLQHandler(store DLQStore, retrier DLQRetrier) *DLQHandler {
	return &DLQHandler{store: store, retrier: retrier}
}

func dlqError(w http.ResponseWriter, id string, err error) {
	if stderrors.Is(err, sql.ErrNoRows) {
		response.Error(w, errors.E(errors.NotFound, "dlq message "+id+" not found"))
		return
	}
	logger.Error("[DLQ] admin operation on %s failed: %v", id, err)
	response.Error(w, err)
}

// List retrieves unresolved DLQ messages.
// GET /api/admin/dlq/messages?limit=50
func (h *DLQHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	messages, err := h.store.ListUnresolved(r.Context(), limit, false)
	if err != nil {
		logger.Error("Error fetching DLQ messages: %v", err)
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "DLQ messages retrieved", map[string]interface{}{
		"count": len(messages),
		"data":  messages,
	})
}

// Stats GET /api/admin/dlq/stats
func (h *DLQHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		logger.Error("Error fetching DLQ statistics: %v", err)
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "DLQ statistics", stats)
}

// Retry replays a single message through its handler.
// POST /api/admin/dlq/messages/{id}/retry
func (h *DLQHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.retrier.RetryOne(r.Context(), id)
	if err != nil {
		dlqError(w, id, err)
		return
	}
	msg := "Message retried successfully"
	if !ok {
		msg = "Retry failed, message stays in the queue"
	}
	response.SuccessResponse(w, http.StatusOK, msg, map[string]interface{}{
		"messageId": id,
		"resolved":  ok,
	})
}

// Resolve marks a DLQ message as resolved without replaying it.
// POST /api/admin/dlq/messages/{id}/resolve
func (h *DLQHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := response.DecodeJSON(r, &req); err != nil {
			response.Error(w, err)
			return
		}
	}
	if req.Notes == "" {
		req.Notes = "Manually resolved"
	}
	if err := h.store.Resolve(r.Context(), id, req.Notes); err != nil {
		dlqError(w, id, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Message marked as resolved", map[string]interface{}{
		"messageId": id,
	})
}
