package domain

import "time"

// QueueDelivery records the first time a push-queue message id was seen.
// A second insert for the same id marks a redelivery; processing still runs
// because stored results are keyed by upsert, not by this log.
type QueueDelivery struct {
	MessageID   string    `gorm:"type:varchar(128);primaryKey"`
	Endpoint    string    `gorm:"type:varchar(64);not null"`
	FirstSeenAt time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (QueueDelivery) TableName() string { return "queue_deliveries" }
