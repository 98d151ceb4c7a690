package domain

import (
	"errors"
	"strings"
)

// MaxBatchUsers caps the number of user ids carried by one batch message.
const MaxBatchUsers = 100

// PeriodRange is the date window carried inside a batch message.
type PeriodRange struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate"   binding:"required"`
}

// BatchMessage is the unit of queued work. It is stateless and replay-safe:
// processing it twice converges to the same stored results.
type BatchMessage struct {
	UserIDs []string    `json:"userIds" binding:"required,min=1,max=100,dive,required"`
	Period  PeriodRange `json:"period"  binding:"required"`
	Type    ReportType  `json:"type"    binding:"required"`
	Month   string      `json:"month,omitempty"`
}

// NewBatchMessage builds the message for one chunk of user ids.
func NewBatchMessage(p Period, userIDs []string) BatchMessage {
	return BatchMessage{
		UserIDs: userIDs,
		Period:  PeriodRange{StartDate: p.StartDate, EndDate: p.EndDate},
		Type:    p.Type,
		Month:   p.Month,
	}
}

// ToPeriod converts the message back into a validated Period.
func (m BatchMessage) ToPeriod() (Period, error) {
	typ, err := ParseReportType(string(m.Type))
	if err != nil {
		return Period{}, err
	}
	p := Period{Type: typ, StartDate: m.Period.StartDate, EndDate: m.Period.EndDate}
	if typ == Monthly {
		p.Month = m.Month
	}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks the user id list and the period.
func (m BatchMessage) Validate() error {
	if len(m.UserIDs) == 0 {
		return errors.New("userIds must not be empty")
	}
	if len(m.UserIDs) > MaxBatchUsers {
		return errors.New("userIds exceeds batch limit")
	}
	for _, id := range m.UserIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("userIds must not contain blanks")
		}
	}
	_, err := m.ToPeriod()
	return err
}

// Per-user outcome statuses.
const (
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
)

// Skip reasons reported for users that produced no stored result.
const (
	ReasonNoRecords             = "no_records"
	ReasonInsufficientRecords   = "insufficient_records"
	ReasonTrendGenerationFailed = "trend_generation_failed"
	ReasonNotEligible           = "not_eligible"
	ReasonUnsupportedType       = "unsupported_type"
)

// UserStatus is the per-user outcome of one generation attempt.
type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Updated returns an "updated" status for userID.
func Updated(userID string) UserStatus {
	return UserStatus{UserID: userID, Status: StatusUpdated}
}

// Skipped returns a "skipped" status for userID with reason.
func Skipped(userID, reason string) UserStatus {
	return UserStatus{UserID: userID, Status: StatusSkipped, Reason: reason}
}
