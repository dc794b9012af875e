package webhooks

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cart-recovery/internal/outcome"
	"cart-recovery/internal/providers/shopify"

	"github.com/gin-gonic/gin"
)

// Voice-agent facing endpoints: the end-of-call report and the server-side
// tools the agent can invoke mid-call. Tool endpoints always answer 200 with
// an in-band result string so the agent can relay failures to the customer.

const endOfCallReportType = "end-of-call-report"

type vapiEnvelope struct {
	Message vapiMessage `json:"message"`
}

type vapiMessage struct {
	Type            string   `json:"type"`
	EndedReason     string   `json:"endedReason"`
	Transcript      string   `json:"transcript"`
	DurationSeconds float64  `json:"durationSeconds"`
	Call            vapiCall `json:"call"`
	Analysis        struct {
		SuccessEvaluation string `json:"successEvaluation"`
	} `json:"analysis"`
	ToolCallList []toolCall `json:"toolCallList"`
}

type vapiCall struct {
	ID string `json:"id"`
}

type toolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string        `json:"name"`
		Arguments toolArguments `json:"arguments"`
	} `json:"function"`
}

type toolArguments struct {
	CustomerPhone   string      `json:"customer_phone"`
	CheckoutURL     string      `json:"checkout_url"`
	DiscountPercent json.Number `json:"discount_percent"`
	CartTotal       json.Number `json:"cart_total"`
}

// CallStatus consumes provider call events. Everything except the
// end-of-call report is acknowledged and ignored.
func (h Handlers) CallStatus(c *gin.Context) {
	var env vapiEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	msg := env.Message
	if msg.Type != endOfCallReportType {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	rep := outcome.Report{
		EndedReason:       msg.EndedReason,
		SuccessEvaluation: msg.Analysis.SuccessEvaluation,
	}
	res, err := h.Resolver.Resolve(c.Request.Context(), msg.Call.ID, rep, msg.Transcript, int(msg.DurationSeconds))
	if err != nil {
		// Provider retries on non-2xx; a storage hiccup should get a retry.
		h.log().Error("outcome resolution failed", "vapi_call_id", msg.Call.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": res.Outcome})
}

// toolResult answers a tool invocation. The result is plain prose the agent
// reads back, success or failure alike.
func toolResult(c *gin.Context, toolCallID, result string) {
	c.JSON(http.StatusOK, gin.H{
		"results": []gin.H{{"toolCallId": toolCallID, "result": result}},
	})
}

func firstToolCall(c *gin.Context) (toolCall, bool) {
	var env vapiEnvelope
	if err := c.ShouldBindJSON(&env); err != nil || len(env.Message.ToolCallList) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No tool call found"})
		return toolCall{}, false
	}
	return env.Message.ToolCallList[0], true
}

// SendSMS texts the customer their checkout link on the agent's request.
func (h Handlers) SendSMS(c *gin.Context) {
	tc, ok := firstToolCall(c)
	if !ok {
		return
	}
	args := tc.Function.Arguments

	if _, err := h.SMS.SendCheckoutLink(c.Request.Context(), args.CustomerPhone, args.CheckoutURL); err != nil {
		h.log().Error("checkout sms failed", "phone", args.CustomerPhone, "err", err)
		toolResult(c, tc.ID, fmt.Sprintf("Failed to send SMS: %v", err))
		return
	}
	toolResult(c, tc.ID, fmt.Sprintf("Checkout link sent to %s", args.CustomerPhone))
}

// ApplyDiscount creates a single-use discount code, capped by the cart
// total, and texts the discounted checkout link to the customer.
func (h Handlers) ApplyDiscount(c *gin.Context) {
	tc, ok := firstToolCall(c)
	if !ok {
		return
	}
	args := tc.Function.Arguments

	requested := 10
	if n, err := args.DiscountPercent.Int64(); err == nil && n > 0 {
		requested = int(n)
	}
	cartTotal, _ := args.CartTotal.Float64()
	percent := shopify.CapPercent(cartTotal, requested)

	code, err := h.Discounts.CreateDiscountCode(c.Request.Context(), percent)
	if err != nil {
		h.log().Error("discount creation failed", "err", err)
		toolResult(c, tc.ID, fmt.Sprintf("Failed to apply discount: %v", err))
		return
	}

	discountURL := args.CheckoutURL + "?discount=" + code
	if _, err := h.SMS.SendCheckoutLink(c.Request.Context(), args.CustomerPhone, discountURL); err != nil {
		h.log().Error("discount sms failed", "phone", args.CustomerPhone, "err", err)
		toolResult(c, tc.ID, fmt.Sprintf("Failed to apply discount: %v", err))
		return
	}

	toolResult(c, tc.ID, fmt.Sprintf("Discount code %s created (%d%% off) and checkout link sent to %s",
		code, percent, args.CustomerPhone))
}
