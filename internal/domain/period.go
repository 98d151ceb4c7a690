package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// MonthLayout is the format of the monthly period label.
const MonthLayout = "2006-01"

// ReportType selects the cadence of a report.
type ReportType string

const (
	Weekly  ReportType = "weekly"
	Monthly ReportType = "monthly"
)

// ErrInvalidReportType is returned for anything other than weekly|monthly.
var ErrInvalidReportType = errors.New("type must be weekly or monthly")

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ParseReportType normalizes and validates a report type.
func ParseReportType(s string) (ReportType, error) {
	switch t := ReportType(strings.ToLower(strings.TrimSpace(s))); t {
	case Weekly, Monthly:
		return t, nil
	default:
		return "", ErrInvalidReportType
	}
}

// Period is the calendar window one report covers. Month is set only for
// monthly periods.
type Period struct {
	Type      ReportType `json:"type"`
	StartDate string     `json:"startDate"`
	EndDate   string     `json:"endDate"`
	Month     string     `json:"month,omitempty"`
}

// ParseBaseDate parses a YYYY-MM-DD base date in loc.
func ParseBaseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ComputePeriod returns the reporting period for typ relative to base:
// the previous Monday–Sunday week, or the previous calendar month.
func ComputePeriod(typ ReportType, base time.Time) (Period, error) {
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
	switch typ {
	case Weekly:
		// time.Weekday has Sunday=0; shift so Monday=0.
		offset := (int(day.Weekday()) + 6) % 7
		thisMonday := day.AddDate(0, 0, -offset)
		start := thisMonday.AddDate(0, 0, -7)
		end := start.AddDate(0, 0, 6)
		return Period{Type: Weekly, StartDate: start.Format(DateLayout), EndDate: end.Format(DateLayout)}, nil
	case Monthly:
		firstOfThis := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		start := firstOfThis.AddDate(0, -1, 0)
		end := firstOfThis.AddDate(0, 0, -1)
		return Period{
			Type:      Monthly,
			StartDate: start.Format(DateLayout),
			EndDate:   end.Format(DateLayout),
			Month:     start.Format(MonthLayout),
		}, nil
	default:
		return Period{}, ErrInvalidReportType
	}
}

// Validate checks the period boundaries and the month label.
func (p Period) Validate() error {
	if _, err := ParseReportType(string(p.Type)); err != nil {
		return err
	}
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return fmt.Errorf("startDate: %w", ErrInvalidDate)
	}
	end, err := time.Parse(DateLayout, p.EndDate)
	if err != nil {
		return fmt.Errorf("endDate: %w", ErrInvalidDate)
	}
	if end.Before(start) {
		return errors.New("endDate must not precede startDate")
	}
	if p.Type == Monthly {
		if _, err := time.Parse(MonthLayout, p.Month); err != nil {
			return errors.New("month must be YYYY-MM for monthly periods")
		}
	}
	return nil
}

// Days returns the number of calendar days in the period, inclusive.
func (p Period) Days() int {
	start, err1 := time.Parse(DateLayout, p.StartDate)
	end, err2 := time.Parse(DateLayout, p.EndDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
