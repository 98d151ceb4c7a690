// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries used by operators to
// compare processed result counts against expected user counts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/domain"
)

// InsightCoverage returns the number of result rows stored for one period
// and the greatest updated_at among them (nil when there are none).
func InsightCoverage(ctx context.Context, db *gorm.DB, typ domain.ReportType, start, end string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.InsightResult{}).
		Where("type = ? AND period_start = ? AND period_end = ?", string(typ), start, end)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// EligibleUserCount returns how many users are eligible at now.
func EligibleUserCount(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var n int64
	err := eligibleScope(db.WithContext(ctx), now).Count(&n).Error
	return n, err
}
