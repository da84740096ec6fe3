package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// DueNoticeMessage is published when a pending occurrence is surfaced for
// confirmation. Consumers render Message as the alert body.
type DueNoticeMessage struct {
	TemplateID  string          `json:"template_id"`
	Description string          `json:"description"`
	DueDate     string          `json:"due_date"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Message     string          `json:"message"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewDueNoticeMessage(n core.DueNotice) *DueNoticeMessage {
	return &DueNoticeMessage{
		TemplateID:  n.TemplateID,
		Description: n.Description,
		DueDate:     n.DueDate.String(),
		Kind:        string(n.Kind),
		Amount:      n.Amount.Decimal(),
		Message:     n.Message(),
		Timestamp:   time.Now(),
	}
}

func (m *DueNoticeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DueNoticeMessageFromJSON(data []byte) (*DueNoticeMessage, error) {
	var msg DueNoticeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
