// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file lists users page by page and resolves their
// eligibility for periodic reports from the subscriptions table.
//
// Eligibility: a subscription with status active or trialing whose
// current_period_end is NULL or later than now.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/domain"
)

var eligibleStatuses = []string{domain.SubscriptionActive, domain.SubscriptionTrialing}

// ListUserIDsPage returns the ids on a 1-based page ordered by (created_at, id).
// The raw page is unfiltered; callers compare its length against limit to
// decide whether more pages may exist.
func ListUserIDsPage(ctx context.Context, db *gorm.DB, page, limit int) ([]string, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []string{}, nil
	}
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Order("created_at ASC").
		Order("id ASC").
		Offset((page-1)*limit).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FilterEligible returns the subset of ids that are eligible at now, in the
// order they were given.
func FilterEligible(ctx context.Context, db *gorm.DB, ids []string, now time.Time) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	var ok []string
	err := eligibleScope(db.WithContext(ctx), now).
		Where("user_id IN ?", ids).
		Pluck("user_id", &ok).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ok))
	for _, id := range ok {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(ok))
	for _, id := range ids {
		if _, hit := set[id]; hit {
			out = append(out, id)
		}
	}
	return out, nil
}

// IsEligible reports whether a single user is eligible at now.
func IsEligible(ctx context.Context, db *gorm.DB, userID string, now time.Time) (bool, error) {
	var n int64
	err := eligibleScope(db.WithContext(ctx), now).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n > 0, err
}

func eligibleScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&domain.Subscription{}).
		Where("status IN ?", eligibleStatuses).
		Where("current_period_end IS NULL OR current_period_end > ?", now.UTC())
}
