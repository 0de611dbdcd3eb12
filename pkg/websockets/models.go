package websockets

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeBalanceUpdate is sent whenever an account balance changes.
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"
	// MessageTypeScanResult is sent for every card tap or guest QR scan decision.
	MessageTypeScanResult MessageType = "scanResult"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// BalanceUpdatePayload is the payload for a balanceUpdate message.
type BalanceUpdatePayload struct {
	AccountID  string `json:"account_id"`
	Reason     string `json:"reason"`
	Change     int64  `json:"change"`
	NewBalance int64  `json:"new_balance"`
}

// ScanResultPayload is the payload for a scanResult message.
type ScanResultPayload struct {
	ScanID    string `json:"scan_id"`
	SubjectID string `json:"subject_id"`
	Channel   string `json:"channel"`
	Location  string `json:"location"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	FraudFlag bool   `json:"fraud_flag"`
}

// NewBalanceUpdate builds a balanceUpdate message.
func NewBalanceUpdate(accountID, reason string, change, newBalance int64) Message {
	return Message{
		Type: MessageTypeBalanceUpdate,
		Payload: BalanceUpdatePayload{
			AccountID:  accountID,
			Reason:     reason,
			Change:     change,
			NewBalance: newBalance,
		},
	}
}

// NewScanResult builds a scanResult message.
func NewScanResult(p ScanResultPayload) Message {
	return Message{Type: MessageTypeScanResult, Payload: p}
}
