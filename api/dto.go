/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry json tags (ActivityRecord, PayPeriod, Bucket, Result) are
  returned as they are; the types here wrap or shape them per endpoint.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Request bodies carry `validate` tags checked in decodeAndValidate.
  Recurrence forms validate themselves (recurrence/validate.go) so the
  per-row messages stay in one place.

SEE ALSO:
  - handlers.go: Uses these types
  - recurrence/form.go: Form and Entry
*/
package api

import (
	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/aggregate"
	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/recurrence"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error    string               `json:"error"`
	Details  string               `json:"details,omitempty"`
	Problems []recurrence.Problem `json:"problems,omitempty"`
}

// =============================================================================
// ENTITIES
// =============================================================================

// CreateOperatorRequest creates or renames an operator.
type CreateOperatorRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// CreateClassRequest creates or renames a class.
type CreateClassRequest struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Symbol string `json:"symbol" validate:"required,max=8"`
}

// CreateAssignmentRequest adds a standing weekly assignment.
type CreateAssignmentRequest struct {
	OperatorID    string             `json:"operator_id" validate:"required"`
	ClassID       string             `json:"class_id" validate:"required"`
	Weekday       *int               `json:"weekday" validate:"required,min=0,max=4"`
	EffectiveFrom generic.TimePoint  `json:"effective_from"`
	EffectiveTo   *generic.TimePoint `json:"effective_to,omitempty"`
}

// CreateHolidayRequest adds a named holiday.
type CreateHolidayRequest struct {
	Date generic.TimePoint `json:"date"`
	Name string            `json:"name" validate:"required"`
}

// =============================================================================
// RECURRENCE AND BATCHES
// =============================================================================

// BatchRequest submits (or previews) a recurrence form.
//
// Month is the reporting month whose pay period bounds the dates; the form's
// payment_period is the billing label and may differ. ExcludeHolidayWindow
// overrides form.options when set; with neither, the server default applies.
type BatchRequest struct {
	OperatorID           string          `json:"operator_id,omitempty"`
	Month                generic.Month   `json:"month"`
	ExcludeHolidayWindow *bool           `json:"exclude_holiday_window,omitempty"`
	Form                 recurrence.Form `json:"form"`
}

// PreviewResponse lists the tuples a form would submit.
type PreviewResponse struct {
	Period generic.PayPeriod `json:"period"`
	Tuples []activity.Tuple  `json:"tuples"`
}

// BatchResponse reports a submitted batch.
type BatchResponse struct {
	activity.Result
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
}

func toBatchResponse(res activity.Result) BatchResponse {
	if res.Notices == nil {
		res.Notices = []activity.Notice{}
	}
	if res.Failures == nil {
		res.Failures = []activity.Failure{}
	}
	return BatchResponse{Result: res, OK: res.OK(), Summary: res.Summary()}
}

// Toggle flips one symbol on one grid row.
type Toggle struct {
	Row    int    `json:"row"`
	Symbol string `json:"symbol"`
}

// GridSubmitRequest applies toggles to the operator's grid and submits
// every pending selection.
type GridSubmitRequest struct {
	OperatorID    string        `json:"operator_id,omitempty"`
	Month         generic.Month `json:"month"`
	Toggles       []Toggle      `json:"toggles"`
	Description   string        `json:"description,omitempty"`
	PaymentPeriod string        `json:"payment_period,omitempty"`
}

// DeleteRequest removes several records at once.
type DeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// DeleteResponse reports a bulk delete.
type DeleteResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// =============================================================================
// AGGREGATES
// =============================================================================

// AggregateResponse is the dashboard payload.
type AggregateResponse struct {
	Filter       aggregate.Filter       `json:"filter"`
	Buckets      []aggregate.Bucket     `json:"buckets"`
	Total        int                    `json:"total"`
	Vocabularies aggregate.Vocabularies `json:"vocabularies"`
	Detail       *aggregate.Detail      `json:"detail,omitempty"`
}

// CountResponse is a monthly count for one operator or group.
type CountResponse struct {
	Period string `json:"period"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// UtilizationResponse adds a display percentage to the utilization view.
type UtilizationResponse struct {
	aggregate.Utilization
	Percent string `json:"percent"`
}
