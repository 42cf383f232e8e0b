package handlers

import (
	"context"
	"io"
	"net/http"

	"triaright-platform/errors"
	"triaright-platform/http/response"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/payment"
)

type PaymentService interface {
	Preview(ctx context.Context, req payment.OrderRequest) (*models.PriceQuote, error)
	CreateOrder(ctx context.Context, user *models.User, req payment.OrderRequest) (*models.CheckoutOrder, error)
	Verify(ctx context.Context, userID int, orderID, paymentID, signature string) (*models.PaymentVerification, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*payment.WebhookResult, error)
}

// UserLookup loads the buyer for checkout prefill.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type PaymentHandler struct {
	svc   PaymentService
	users UserLookup
}

func NewPaymentHandler(svc PaymentService, users UserLookup) *PaymentHandler {
	return &PaymentHandler{svc: svc, users: users}
}

const maxWebhookBody = 1 << 20

// verifyRequest mirrors the fields Razorpay Checkout hands back to the page.
type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// ValidateCoupon prices a purchase with an optional coupon.
// POST /api/coupons/validate
func (h *PaymentHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req payment.OrderRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	quote, err := h.svc.Preview(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Price calculated", quote)
}

// CreateOrder POST /api/payments/orders
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req payment.OrderRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	user, err := h.users.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, err)
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), user, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Order created", order)
}

// Verify POST /api/payments/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req verifyRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.svc.Verify(r.Context(), id.UserID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Payment verified", result)
}

// Webhook receives gateway notifications. The raw body is needed for the
// signature, so it is never decoded before the service sees it. Anything
// other than a bad signature answers 500 so the gateway retries.
// POST /api/payments/webhook
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "failed to read body")
		return
	}
	result, err := h.svc.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature"))
	if err != nil {
		if errors.KindOf(err) == errors.Unauthorized {
			logger.Warn("[WEBHOOK] rejected: %v", err)
			response.ErrorResponse(w, http.StatusUnauthorized, errors.Message(err))
			return
		}
		logger.Error("[WEBHOOK] processing failed: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Webhook processed", result)
}
