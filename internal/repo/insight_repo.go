// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists insight results.
//
// UpsertInsight is the only write path: an INSERT ... ON CONFLICT on
// (user_id, type, period_start, period_end) so concurrent deliveries of the
// same batch converge to one row instead of racing a read-then-write.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/journal-insights/internal/domain"
)

// UpsertInsight inserts the result for its key or overwrites payload,
// generated_at and updated_at of the existing row. id and created_at of an
// existing row are preserved.
func UpsertInsight(ctx context.Context, db *gorm.DB, userID string, typ domain.ReportType, start, end, payload string, now time.Time) error {
	now = now.UTC()
	row := domain.InsightResult{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        string(typ),
		PeriodStart: start,
		PeriodEnd:   end,
		Payload:     payload,
		GeneratedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "type"}, {Name: "period_start"}, {Name: "period_end"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "generated_at", "updated_at"}),
	}).Create(&row).Error
}

// GetInsight returns the row for one key or ErrNotFound.
func GetInsight(ctx context.Context, db *gorm.DB, userID string, typ domain.ReportType, start, end string) (*domain.InsightResult, error) {
	var row domain.InsightResult
	err := db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND period_start = ? AND period_end = ?", userID, string(typ), start, end).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListPriorInsights returns up to limit results of typ for the user whose
// period started before `before`, most recent first.
func ListPriorInsights(ctx context.Context, db *gorm.DB, userID string, typ domain.ReportType, before string, limit int) ([]domain.InsightResult, error) {
	if limit <= 0 {
		return []domain.InsightResult{}, nil
	}
	var rows []domain.InsightResult
	err := db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND period_start < ?", userID, string(typ), before).
		Order("period_start DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
