// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file reads the encrypted source records a report is
// generated from. Rows are returned as stored; decryption happens in Store.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/domain"
)

// ListJournalEntries returns a user's journal entries with start <= entry_date <= end,
// oldest first.
func ListJournalEntries(ctx context.Context, db *gorm.DB, userID, start, end string) ([]domain.JournalEntry, error) {
	var rows []domain.JournalEntry
	err := db.WithContext(ctx).
		Where("user_id = ? AND entry_date >= ? AND entry_date <= ?", userID, start, end).
		Order("entry_date ASC").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListDailySummaries returns a user's daily summaries within [start, end],
// oldest first.
func ListDailySummaries(ctx context.Context, db *gorm.DB, userID, start, end string) ([]domain.DailySummary, error) {
	var rows []domain.DailySummary
	err := db.WithContext(ctx).
		Where("user_id = ? AND summary_date >= ? AND summary_date <= ?", userID, start, end).
		Order("summary_date ASC").
		Find(&rows).Error
	return rows, err
}
