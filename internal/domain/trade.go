package domain

// Trade result statuses reported by the vendor.
const (
	TradeStatusFilled   = "FILLED"
	TradeStatusRejected = "REJECTED"
)

// TradeResult is the vendor's response to an executed trade.
type TradeResult struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
}
