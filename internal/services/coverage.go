package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/journal-insights/internal/domain"
)

// CoverageStore reports stored results for a period. repo.Store implements it.
type CoverageStore interface {
	Coverage(ctx context.Context, p domain.Period) (domain.Coverage, error)
}

// CoverageService answers "how many results exist for this period", so
// operators can compare processed against eligible counts after a run.
type CoverageService struct {
	Store     CoverageStore
	Scheduler *Scheduler
}

// CoverageQuery selects the period either explicitly (Start and End) or by
// the same base-date rule the scheduler uses.
type CoverageQuery struct {
	Type     string
	BaseDate string
	Start    string
	End      string
}

// Get returns the coverage for the selected period.
func (s *CoverageService) Get(ctx context.Context, q CoverageQuery) (domain.Coverage, error) {
	var p domain.Period
	if strings.TrimSpace(q.Start) != "" || strings.TrimSpace(q.End) != "" {
		typ, err := domain.ParseReportType(q.Type)
		if err != nil {
			return domain.Coverage{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		p = domain.Period{Type: typ, StartDate: strings.TrimSpace(q.Start), EndDate: strings.TrimSpace(q.End)}
		if typ == domain.Monthly && len(p.StartDate) >= len(domain.MonthLayout) {
			p.Month = p.StartDate[:len(domain.MonthLayout)]
		}
		if err := p.Validate(); err != nil {
			return domain.Coverage{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	} else {
		var err error
		if p, _, err = s.Scheduler.ResolvePeriod(q.Type, q.BaseDate); err != nil {
			return domain.Coverage{}, err
		}
	}
	return s.Store.Coverage(ctx, p)
}
