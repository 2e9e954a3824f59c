package funding

// FundingRequest captures a deposit or withdrawal initiation.
type FundingRequest struct {
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	PaymentMethodID string `json:"payment_method_id"`
	ClientRequestID string `json:"client_request_id"`
}

// CallbackRequest is the asynchronous gateway event payload. The gateway may
// deliver the same event more than once.
type CallbackRequest struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// FundingResponse represents the API response for funding actions.
type FundingResponse struct {
	TransactionID string `json:"transaction_id"`
	IntentID      string `json:"intent_id"`
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	Available     string `json:"available,omitempty"`
}
