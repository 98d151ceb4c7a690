// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the queue delivery log used to flag
// redelivered push-queue messages.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/domain"
)

// RecordDelivery inserts the first sighting of messageID and returns
// ErrDuplicate when the id was already logged. Expired rows are purged first
// so an id reused after its TTL counts as new.
func RecordDelivery(ctx context.Context, db *gorm.DB, messageID, endpoint string, ttl time.Duration, now time.Time) (*domain.QueueDelivery, error) {
	now = now.UTC()
	if err := db.WithContext(ctx).
		Where("message_id = ? AND expires_at <= ?", messageID, now).
		Delete(&domain.QueueDelivery{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.QueueDelivery{
		MessageID:   messageID,
		Endpoint:    endpoint,
		FirstSeenAt: now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredDeliveries deletes log rows whose TTL has passed.
func PurgeExpiredDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.QueueDelivery{})
	return res.RowsAffected, res.Error
}
