package ingest

import (
	"strconv"
	"strings"

	"cart-recovery/internal/calls"
)

// One adapter per inbound shape, each producing the canonical Lead. Nothing
// downstream branches on the source shape.

// Lead is the canonical normalized cart-abandonment event.
type Lead struct {
	Phone  string
	Email  string
	Name   string
	Region string

	CartTotal   float64
	Items       []calls.CartItem
	CheckoutURL string

	// CollectOnly leads persist a record but never dispatch a call,
	// regardless of the outbound-calling switch.
	CollectOnly bool
}

// HasContact reports whether the lead carries any customer identifier.
func (l Lead) HasContact() bool {
	return l.Phone != "" || l.Email != ""
}

// Record builds the ingestion-time call record for this lead.
func (l Lead) Record() calls.NewCallRecord {
	return calls.NewCallRecord{
		CustomerPhone: l.Phone,
		CustomerEmail: l.Email,
		CustomerName:  l.Name,
		CartTotal:     l.CartTotal,
		ItemsJSON:     calls.EncodeItems(l.Items),
		CheckoutURL:   l.CheckoutURL,
	}
}

// KlaviyoCartEvent is the marketing-automation push shape.
type KlaviyoCartEvent struct {
	CustomerPhone string           `json:"customer_phone"`
	CustomerEmail string           `json:"customer_email"`
	CustomerName  string           `json:"customer_name"`
	CartTotal     float64          `json:"cart_total"`
	CartItems     []calls.CartItem `json:"cart_items"`
	CheckoutURL   string           `json:"checkout_url"`
	CustomerState string           `json:"customer_state"`
}

func (e KlaviyoCartEvent) Lead() Lead {
	return Lead{
		Phone:       strings.TrimSpace(e.CustomerPhone),
		Email:       strings.TrimSpace(e.CustomerEmail),
		Name:        strings.TrimSpace(e.CustomerName),
		Region:      e.CustomerState,
		CartTotal:   e.CartTotal,
		Items:       e.CartItems,
		CheckoutURL: e.CheckoutURL,
	}
}

// ShopifyCheckout is the platform-native abandoned-checkout shape.
type ShopifyCheckout struct {
	Email                string            `json:"email"`
	Phone                string            `json:"phone"`
	ShippingAddress      *ShopifyAddress   `json:"shipping_address"`
	BillingAddress       *ShopifyAddress   `json:"billing_address"`
	LineItems            []ShopifyLineItem `json:"line_items"`
	TotalPrice           string            `json:"total_price"`
	AbandonedCheckoutURL string            `json:"abandoned_checkout_url"`
	DiscountCodes        []map[string]any  `json:"discount_codes"`
	TotalDiscounts       string            `json:"total_discounts"`
}

type ShopifyAddress struct {
	Phone        string `json:"phone"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProvinceCode string `json:"province_code"`
}

type ShopifyLineItem struct {
	Title        string `json:"title"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	VariantTitle string `json:"variant_title"`
}

// Lead normalizes the Shopify shape: phone and region fall through shipping
// then billing address, the name is assembled from address parts with the
// email as a last resort. Shopify checkouts are collect-only.
func (c ShopifyCheckout) Lead() Lead {
	phone := firstNonEmpty(c.Phone, addrPhone(c.ShippingAddress), addrPhone(c.BillingAddress))

	first := firstNonEmpty(addrFirst(c.ShippingAddress), addrFirst(c.BillingAddress))
	last := firstNonEmpty(addrLast(c.ShippingAddress), addrLast(c.BillingAddress))
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		name = c.Email
	}
	if name == "" {
		name = "Unknown"
	}

	total, _ := strconv.ParseFloat(c.TotalPrice, 64)

	items := make([]calls.CartItem, 0, len(c.LineItems))
	for _, li := range c.LineItems {
		title := li.Title
		if li.VariantTitle != "" {
			title = title + " (" + li.VariantTitle + ")"
		}
		items = append(items, calls.CartItem{Title: title, Quantity: li.Quantity, Price: li.Price})
	}

	return Lead{
		Phone:       strings.TrimSpace(phone),
		Email:       strings.TrimSpace(c.Email),
		Name:        name,
		Region:      firstNonEmpty(addrRegion(c.ShippingAddress), addrRegion(c.BillingAddress)),
		CartTotal:   total,
		Items:       items,
		CheckoutURL: c.AbandonedCheckoutURL,
		CollectOnly: true,
	}
}

func addrPhone(a *ShopifyAddress) string {
	if a == nil {
		return ""
	}
	return a.Phone
}

func addrFirst(a *ShopifyAddress) string {
	if a == nil {
		return ""
	}
	return a.FirstName
}

func addrLast(a *ShopifyAddress) string {
	if a == nil {
		return ""
	}
	return a.LastName
}

func addrRegion(a *ShopifyAddress) string {
	if a == nil {
		return ""
	}
	return a.ProvinceCode
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
