package activity

import (
	"github.com/warp/activity-engine/generic"
)

// Tuple is one activity waiting to be submitted.
type Tuple struct {
	OperatorID    string            `json:"operator_id,omitempty"`
	ClassID       string            `json:"class_id"`
	Date          generic.TimePoint `json:"date"`
	Description   string            `json:"description,omitempty"`
	PaymentPeriod string            `json:"payment_period"`
}

func (t Tuple) newRecord() generic.NewRecord {
	return generic.NewRecord{
		OperatorID:    t.OperatorID,
		ClassID:       t.ClassID,
		Date:          t.Date,
		Description:   t.Description,
		PaymentPeriod: t.PaymentPeriod,
	}
}

// Session identifies who submits a batch. It is built by the transport
// layer from a verified token and handed to the Creator explicitly.
type Session struct {
	Subject      string `json:"sub"`
	OperatorID   string `json:"operator_id"`
	OperatorName string `json:"operator_name,omitempty"`
	Admin        bool   `json:"admin,omitempty"`
}

// CanActFor reports whether the session may record activities for operatorID.
func (s Session) CanActFor(operatorID string) bool {
	return s.Admin || s.OperatorID == "" || s.OperatorID == operatorID
}
