package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/crypto"
	"github.com/tbourn/journal-insights/internal/domain"
)

// ErrUnknownRecordKind is returned for a RecordKind with no backing table.
var ErrUnknownRecordKind = fmt.Errorf("unknown record kind")

// Store adapts the repository free functions to the collaborator interfaces
// the pipeline services depend on. It owns field decryption on read and
// payload encryption on write.
type Store struct {
	DB     *gorm.DB
	Cipher crypto.FieldCipher
	Now    func() time.Time
}

// NewStore returns a Store using the wall clock.
func NewStore(db *gorm.DB, c crypto.FieldCipher) *Store {
	return &Store{DB: db, Cipher: c, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ListUsersPage proxies ListUserIDsPage.
func (s *Store) ListUsersPage(ctx context.Context, page, limit int) ([]string, error) {
	return ListUserIDsPage(ctx, s.DB, page, limit)
}

// FilterEligible proxies FilterEligible at the current time.
func (s *Store) FilterEligible(ctx context.Context, ids []string) ([]string, error) {
	return FilterEligible(ctx, s.DB, ids, s.now())
}

// IsEligible proxies IsEligible at the current time.
func (s *Store) IsEligible(ctx context.Context, userID string) (bool, error) {
	return IsEligible(ctx, s.DB, userID, s.now())
}

// FetchRecords loads and decrypts the user's source records of kind within
// [start, end].
func (s *Store) FetchRecords(ctx context.Context, userID string, kind domain.RecordKind, start, end string) ([]domain.SourceRecord, error) {
	switch kind {
	case domain.RecordJournal:
		rows, err := ListJournalEntries(ctx, s.DB, userID, start, end)
		if err != nil {
			return nil, err
		}
		out := make([]domain.SourceRecord, 0, len(rows))
		for _, r := range rows {
			content, err := s.Cipher.Decrypt(r.Content)
			if err != nil {
				return nil, fmt.Errorf("decrypt journal entry %s: %w", r.ID, err)
			}
			desired, err := s.Cipher.Decrypt(r.Intention)
			if err != nil {
				return nil, fmt.Errorf("decrypt journal intention %s: %w", r.ID, err)
			}
			out = append(out, domain.SourceRecord{ID: r.ID, Kind: kind, Date: r.EntryDate, Content: content, Desired: desired})
		}
		return out, nil
	case domain.RecordDailySummary:
		rows, err := ListDailySummaries(ctx, s.DB, userID, start, end)
		if err != nil {
			return nil, err
		}
		out := make([]domain.SourceRecord, 0, len(rows))
		for _, r := range rows {
			content, err := s.Cipher.Decrypt(r.Summary)
			if err != nil {
				return nil, fmt.Errorf("decrypt daily summary %s: %w", r.ID, err)
			}
			desired, err := s.Cipher.Decrypt(r.Focus)
			if err != nil {
				return nil, fmt.Errorf("decrypt daily focus %s: %w", r.ID, err)
			}
			out = append(out, domain.SourceRecord{ID: r.ID, Kind: kind, Date: r.SummaryDate, Content: content, Desired: desired})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordKind, kind)
	}
}

// PriorResults returns up to limit decoded results preceding periodStart.
// Rows that no longer decrypt or decode into the current payload shape are
// skipped rather than reported.
func (s *Store) PriorResults(ctx context.Context, userID string, typ domain.ReportType, periodStart string, limit int) ([]domain.InsightPayload, error) {
	rows, err := ListPriorInsights(ctx, s.DB, userID, typ, periodStart, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.InsightPayload, 0, len(rows))
	for _, r := range rows {
		var p domain.InsightPayload
		if err := crypto.DecryptJSON(s.Cipher, r.Payload, &p); err != nil {
			continue
		}
		if p.Period.StartDate == "" {
			p.Period = domain.Period{Type: typ, StartDate: r.PeriodStart, EndDate: r.PeriodEnd}
		}
		out = append(out, p)
	}
	return out, nil
}

// Result returns the decrypted result stored for the user and period, or
// ErrNotFound.
func (s *Store) Result(ctx context.Context, userID string, p domain.Period) (domain.InsightPayload, error) {
	row, err := GetInsight(ctx, s.DB, userID, p.Type, p.StartDate, p.EndDate)
	if err != nil {
		return domain.InsightPayload{}, err
	}
	var out domain.InsightPayload
	if err := crypto.DecryptJSON(s.Cipher, row.Payload, &out); err != nil {
		return domain.InsightPayload{}, fmt.Errorf("decrypt payload: %w", err)
	}
	return out, nil
}

// UpsertResult encrypts payload and upserts it under the user/period key.
func (s *Store) UpsertResult(ctx context.Context, userID string, p domain.Period, payload domain.InsightPayload) error {
	enc, err := crypto.EncryptJSON(s.Cipher, payload)
	if err != nil {
		return fmt.Errorf("encrypt payload: %w", err)
	}
	return UpsertInsight(ctx, s.DB, userID, p.Type, p.StartDate, p.EndDate, enc, s.now())
}

// Coverage proxies InsightCoverage and EligibleUserCount.
func (s *Store) Coverage(ctx context.Context, p domain.Period) (domain.Coverage, error) {
	n, latest, err := InsightCoverage(ctx, s.DB, p.Type, p.StartDate, p.EndDate)
	if err != nil {
		return domain.Coverage{}, err
	}
	eligible, err := EligibleUserCount(ctx, s.DB, s.now())
	if err != nil {
		return domain.Coverage{}, err
	}
	return domain.Coverage{
		Type:          p.Type,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Results:       n,
		EligibleUsers: eligible,
		LastUpdatedAt: latest,
	}, nil
}

// RecordDelivery proxies RecordDelivery with the current time.
func (s *Store) RecordDelivery(ctx context.Context, messageID, endpoint string, ttl time.Duration) (bool, error) {
	_, err := RecordDelivery(ctx, s.DB, messageID, endpoint, ttl, s.now())
	switch {
	case err == nil:
		return false, nil
	case err == ErrDuplicate:
		return true, nil
	default:
		return false, err
	}
}

// PurgeDeliveries drops delivery log rows past their TTL.
func (s *Store) PurgeDeliveries(ctx context.Context) (int64, error) {
	return PurgeExpiredDeliveries(ctx, s.DB, s.now())
}
