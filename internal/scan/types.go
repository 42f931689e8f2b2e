package scan

import (
	"errors"
	"time"

	"github.com/roach88/mealkiosk/internal/model"
)

// State is the processor's position in the scan lifecycle.
type State int

const (
	Idle State = iota
	Processing
	AwaitingDecision
	Result
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case AwaitingDecision:
		return "awaiting_decision"
	case Result:
		return "result"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OutcomeKind grades a terminal outcome for display.
type OutcomeKind string

const (
	KindSuccess OutcomeKind = "success"
	KindWarning OutcomeKind = "warning"
	KindError   OutcomeKind = "error"
)

// Outcome codes.
const (
	CodeSuccess         = "success"
	CodeManualApproved  = "manual_approved"
	CodeExtraApproved   = "extra_approved"
	CodeNotMealPeriod   = "not_meal_period"
	CodeNoDiningHall    = "no_dining_hall"
	CodeMalformed       = "malformed_code"
	CodeInactive        = "inactive_employee"
	CodeWrongHall       = "wrong_dining_hall"
	CodeAlreadyRecorded = "already_recorded"
	CodeInternal        = "internal_error"
)

// Outcome is the terminal result shown in the Result state.
type Outcome struct {
	Kind         OutcomeKind       `json:"kind"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	EmployeeName string            `json:"employee_name,omitempty"`
	MealName     string            `json:"meal_name,omitempty"`
	CorrectHall  *model.DiningHall `json:"correct_hall,omitempty"`
	Log          *model.MealLog    `json:"log,omitempty"`
}

// PromptKind names the operator decision being asked for.
type PromptKind string

const (
	// PromptUnauthorized may be approved manually or cancelled.
	PromptUnauthorized PromptKind = "unauthorized"
	// PromptDoubleScan may be approved as an extra serving or cancelled.
	PromptDoubleScan PromptKind = "double_scan"
)

// ReasonUnknownEmployee is the unauthorized reason for codes that matched no
// employee.
const ReasonUnknownEmployee = "unknown employee"

// Prompt is an escalation awaiting an operator decision.
type Prompt struct {
	Kind    PromptKind `json:"kind"`
	Reason  string     `json:"reason,omitempty"`
	Message string     `json:"message"`
	// Employee is nil for unknown employees.
	Employee    *model.Employee `json:"employee,omitempty"`
	ScannedCode string          `json:"scanned_code"`
	Meal        model.MealSlot  `json:"meal"`
	Date        string          `json:"date"`
	HallID      int64           `json:"dining_hall_id"`
	// Existing is the earlier record for double scans.
	Existing *model.MealLog `json:"existing,omitempty"`
}

// Snapshot is a consistent view of the processor.
type Snapshot struct {
	State     State      `json:"state"`
	Outcome   *Outcome   `json:"outcome,omitempty"`
	Prompt    *Prompt    `json:"prompt,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

var (
	// ErrBusy is returned when a scan arrives while another is processing or
	// an operator decision is open.
	ErrBusy = errors.New("scan: processor busy")

	// ErrNoPendingDecision is returned when an operator decision arrives with
	// no prompt open.
	ErrNoPendingDecision = errors.New("scan: no pending decision")

	// ErrWrongDecision is returned when the decision does not fit the open
	// prompt, such as approving an extra serving for an unauthorized scan.
	ErrWrongDecision = errors.New("scan: decision does not match prompt")

	// ErrInvalidPIN is returned by Login and VerifyAdminPIN.
	ErrInvalidPIN = errors.New("scan: wrong PIN or inactive chef")
)
