package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cart-recovery/internal/audit"
	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
	"cart-recovery/internal/ingest"
	"cart-recovery/internal/outcome"

	"github.com/gin-gonic/gin"
)

// Handlers groups the inbound webhook endpoints. Keep these thin: verify the
// caller, normalize the payload, call internal services, return JSON.

// DefaultConversionWindow bounds how far back an order is matched to a call.
const DefaultConversionWindow = 7 * 24 * time.Hour

// DiscountIssuer creates single-use discount codes. Satisfied by
// *shopify.Client.
type DiscountIssuer interface {
	CreateDiscountCode(ctx context.Context, percentOff int) (string, error)
}

type Handlers struct {
	Ingest   *ingest.Service
	Calls    calls.Repo
	Carts    carts.Repo
	Resolver *outcome.Resolver

	SMS       outcome.SMSSender
	Discounts DiscountIssuer

	// Shared secrets. Requests that fail verification are rejected with 401;
	// an unset secret rejects everything on that endpoint.
	KlaviyoSecret string
	ShopifySecret string
	ImportSecret  string

	ConversionWindow time.Duration

	Audit *audit.Service

	Now func() time.Time
	Log *slog.Logger
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h Handlers) conversionWindow() time.Duration {
	if h.ConversionWindow > 0 {
		return h.ConversionWindow
	}
	return DefaultConversionWindow
}

// AbandonedCart handles the marketing-automation push. The caller presents a
// shared secret header; the payload must carry a phone number because this
// source feeds the calling pipeline directly.
func (h Handlers) AbandonedCart(c *gin.Context) {
	if !secretEqual(c.GetHeader("x-klaviyo-webhook-secret"), h.KlaviyoSecret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
		return
	}

	var ev ingest.KlaviyoCartEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lead := ev.Lead()
	if lead.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "customer_phone is required"})
		return
	}

	res, err := h.Ingest.Ingest(c.Request.Context(), lead)
	switch {
	case err != nil && res.Record.ID != 0:
		// Record persisted but the call could not be placed.
		h.log().Error("call initiation failed", "call_id", res.Record.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate call"})
	case err != nil:
		h.log().Error("ingestion failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case res.Skipped:
		c.JSON(http.StatusOK, gin.H{"skipped": true, "reason": res.Reason})
	case res.CollectOnly:
		c.JSON(http.StatusOK, gin.H{"success": true, "callId": res.Record.ID, "collectOnly": true})
	case res.Dispatch != nil && res.Dispatch.Scheduled:
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"callId":       res.Record.ID,
			"scheduled":    true,
			"scheduledFor": res.Dispatch.ScheduledFor,
			"timezone":     res.Dispatch.Timezone,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"callId":     res.Record.ID,
			"vapiCallId": res.Dispatch.VapiCallID,
		})
	}
}

// ShopifyAbandonedCheckout records platform-native abandoned checkouts.
// These are collect-only: a call record and an operator cart row are
// persisted, but no call is placed on this path.
func (h Handlers) ShopifyAbandonedCheckout(c *gin.Context) {
	body, ok := h.verifiedShopifyBody(c)
	if !ok {
		return
	}

	var checkout ingest.ShopifyCheckout
	if err := json.Unmarshal(body, &checkout); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lead := checkout.Lead()
	if !lead.HasContact() {
		c.JSON(http.StatusOK, gin.H{"skipped": true, "reason": ingest.SkipNoContact})
		return
	}

	res, err := h.Ingest.Ingest(c.Request.Context(), lead)
	if err != nil && !errors.Is(err, ingest.ErrNoContact) {
		h.log().Error("checkout ingestion failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.Skipped {
		c.JSON(http.StatusOK, gin.H{"skipped": true, "reason": "already_recorded"})
		return
	}

	h.recordCart(c, lead)

	h.log().Info("abandoned cart collected",
		"name", lead.Name, "email", lead.Email, "total", lead.CartTotal, "items", len(lead.Items))
	c.JSON(http.StatusOK, gin.H{"success": true, "callId": res.Record.ID, "collectOnly": true})
}

// recordCart mirrors the lead into the operator follow-up table. Projection
// only: a failure is logged and does not fail the webhook.
func (h Handlers) recordCart(c *gin.Context, lead ingest.Lead) {
	if h.Carts == nil {
		return
	}
	_, err := h.Carts.Create(c.Request.Context(), carts.AbandonedCart{
		CustomerName:  lead.Name,
		CustomerEmail: lead.Email,
		CustomerPhone: lead.Phone,
		CartTotal:     lead.CartTotal,
		ItemsJSON:     calls.EncodeItems(lead.Items),
		CheckoutURL:   lead.CheckoutURL,
		AbandonedAt:   h.now(),
	})
	if err != nil {
		h.log().Error("cart projection failed", "err", err)
	}
}

// shopifyOrder is the order-creation payload subset used for conversion
// matching.
type shopifyOrder struct {
	ID              int64                  `json:"id"`
	Email           string                 `json:"email"`
	TotalPrice      string                 `json:"total_price"`
	Customer        *shopifyOrderCustomer  `json:"customer"`
	ShippingAddress *ingest.ShopifyAddress `json:"shipping_address"`
	BillingAddress  *ingest.ShopifyAddress `json:"billing_address"`
}

type shopifyOrderCustomer struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (o shopifyOrder) email() string {
	if o.Email != "" {
		return o.Email
	}
	if o.Customer != nil {
		return o.Customer.Email
	}
	return ""
}

func (o shopifyOrder) phone() string {
	if o.Customer != nil && o.Customer.Phone != "" {
		return o.Customer.Phone
	}
	if o.ShippingAddress != nil && o.ShippingAddress.Phone != "" {
		return o.ShippingAddress.Phone
	}
	if o.BillingAddress != nil {
		return o.BillingAddress.Phone
	}
	return ""
}

// ShopifyOrderCreated matches a new order back to a recent call and stamps
// the recovered revenue on the most recent match.
func (h Handlers) ShopifyOrderCreated(c *gin.Context) {
	body, ok := h.verifiedShopifyBody(c)
	if !ok {
		return
	}

	var order shopifyOrder
	if err := json.Unmarshal(body, &order); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email, phone := order.email(), order.phone()
	if email == "" && phone == "" {
		c.JSON(http.StatusOK, gin.H{"matched": false, "reason": "no_customer_identifier"})
		return
	}
	revenue, _ := strconv.ParseFloat(order.TotalPrice, 64)

	now := h.now()
	matches, err := h.Calls.RecentByContact(c.Request.Context(), email, phone, now.Add(-h.conversionWindow()))
	if err != nil {
		h.log().Error("conversion lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(matches) == 0 {
		c.JSON(http.StatusOK, gin.H{"matched": false, "reason": "no_matching_calls"})
		return
	}

	call := matches[0]
	if err := h.Calls.StampConversion(c.Request.Context(), call.ID, revenue, now); err != nil {
		h.log().Error("conversion stamp failed", "call_id", call.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.log().Info("conversion tracked", "call_id", call.ID, "revenue", revenue, "order_id", order.ID)
	c.JSON(http.StatusOK, gin.H{"matched": true, "callId": call.ID, "revenue": revenue})
}

// verifiedShopifyBody reads the raw body and rejects the request unless the
// HMAC header verifies against it.
func (h Handlers) verifiedShopifyBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}
	if !VerifyShopifyHMAC(h.ShopifySecret, body, c.GetHeader("X-Shopify-Hmac-Sha256")) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid HMAC signature"})
		return nil, false
	}
	return body, true
}

type bulkImportRequest struct {
	Carts []bulkImportCart `json:"carts"`
}

type bulkImportCart struct {
	Phone       string           `json:"phone"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Total       json.Number      `json:"total"`
	Items       []calls.CartItem `json:"items"`
	CheckoutURL string           `json:"checkout_url"`
}

// BulkImportCarts loads historical carts as queued call records. Per-cart
// failures are logged and skipped so one bad row does not abort the batch.
func (h Handlers) BulkImportCarts(c *gin.Context) {
	if !secretEqual(c.GetHeader("x-import-secret"), h.ImportSecret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
		return
	}
	var req bulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	imported := 0
	for _, cart := range req.Carts {
		total, _ := cart.Total.Float64()
		_, err := h.Calls.Create(c.Request.Context(), calls.NewCallRecord{
			CustomerPhone: cart.Phone,
			CustomerEmail: cart.Email,
			CustomerName:  cart.Name,
			CartTotal:     total,
			ItemsJSON:     calls.EncodeItems(cart.Items),
			CheckoutURL:   cart.CheckoutURL,
		})
		if err != nil {
			h.log().Error("cart import failed", "email", cart.Email, "err", err)
			continue
		}
		imported++
	}

	if err := h.Audit.LogBulkImport(c.Request.Context(), "import", c.ClientIP(), imported, len(req.Carts)); err != nil {
		h.log().Error("audit append failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": imported, "total": len(req.Carts)})
}
