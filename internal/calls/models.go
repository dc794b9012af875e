package calls

import (
	"encoding/json"
	"errors"
	"time"
)

// One CallRecord per cart-recovery attempt. Created queued by webhook
// ingestion, moved to scheduled/in_progress/failed by the dispatcher,
// completed by outcome resolution, and stamped with conversion data by a
// later order match. Records are never deleted here.

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Outcome string

const (
	OutcomeSaleRecovered Outcome = "sale_recovered"
	OutcomeNoAnswer      Outcome = "no_answer"
	OutcomeVoicemail     Outcome = "voicemail"
	OutcomeNotInterested Outcome = "not_interested"
)

// CartItem is one line of the cart snapshot. Price is kept as the
// platform-reported string (e.g. "24.99") to avoid float drift in summaries.
type CartItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type CallRecord struct {
	ID int64 `json:"id"`

	CustomerPhone    string `json:"customer_phone"`
	CustomerEmail    string `json:"customer_email,omitempty"`
	CustomerName     string `json:"customer_name,omitempty"`
	CustomerTimezone string `json:"customer_timezone,omitempty"`

	CartTotal   float64 `json:"cart_total"`
	ItemsJSON   string  `json:"items_json,omitempty"`
	CheckoutURL string  `json:"checkout_url,omitempty"`

	VapiCallID string `json:"vapi_call_id,omitempty"`

	Status  Status  `json:"status"`
	Outcome Outcome `json:"outcome,omitempty"`

	Transcript      string `json:"transcript,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`

	ScheduledFor     *time.Time `json:"scheduled_for,omitempty"`
	RevenueRecovered *float64   `json:"revenue_recovered,omitempty"`
	ConvertedAt      *time.Time `json:"converted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Items decodes the serialized cart snapshot. A missing or corrupt snapshot
// yields an empty list; dispatch must not fail on it.
func (r CallRecord) Items() []CartItem {
	if r.ItemsJSON == "" {
		return nil
	}
	var items []CartItem
	if err := json.Unmarshal([]byte(r.ItemsJSON), &items); err != nil {
		return nil
	}
	return items
}

// EncodeItems serializes a cart snapshot for storage. nil encodes as "[]".
func EncodeItems(items []CartItem) string {
	if items == nil {
		items = []CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// NewCallRecord is the ingestion-time subset of a CallRecord.
type NewCallRecord struct {
	CustomerPhone string
	CustomerEmail string
	CustomerName  string
	CartTotal     float64
	ItemsJSON     string
	CheckoutURL   string
}

func (n NewCallRecord) Validate() error {
	if n.CustomerPhone == "" && n.CustomerEmail == "" {
		return ErrInvalidArgument
	}
	return nil
}

// ListFilter narrows List queries. Zero values mean "no filter".
type ListFilter struct {
	Outcome  Outcome
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// DailyCount is one bucket of the dashboard call-volume series.
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Stats is the dashboard summary over the calls table.
type Stats struct {
	TotalCalls       int          `json:"totalCalls"`
	CompletedCalls   int          `json:"completedCalls"`
	RecoveredCalls   int          `json:"recoveredCalls"`
	RevenueRecovered float64      `json:"revenueRecovered"`
	CallsToday       int          `json:"callsToday"`
	DailyCalls       []DailyCount `json:"dailyCalls"`
}
