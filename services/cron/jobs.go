package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/uniportal-api/model"
)

const (
	// videoBatchSize bounds the jobs checked in one tick
	videoBatchSize = 50
	// cronLogRetention is how long job history is kept
	cronLogRetention = 90 * 24 * time.Hour
)

// PollVideoUploads checks the video upload jobs whose next check is due.
// Runs every minute.
func (m *CronManager) PollVideoUploads(ctx context.Context) (string, error) {
	processed, err := m.videos.PollDue(ctx, videoBatchSize)
	if err != nil {
		return "", fmt.Errorf("poll video uploads: %w", err)
	}
	return fmt.Sprintf("Checked %d video jobs", processed), nil
}

// ExpireAdvertisements deactivates advertisements whose end date has passed.
// Runs every 10 minutes.
func (m *CronManager) ExpireAdvertisements(ctx context.Context) (string, error) {
	result := m.db.WithContext(ctx).
		Model(&model.Advertisement{}).
		Where("is_active = ? AND ends_at IS NOT NULL AND ends_at <= ?", true, m.now()).
		Update("is_active", false)
	if result.Error != nil {
		return "", fmt.Errorf("expire advertisements: %w", result.Error)
	}
	return fmt.Sprintf("Deactivated %d advertisements", result.RowsAffected), nil
}

// CleanupExpiredTokens removes blacklist rows of tokens past their expiry.
// Runs daily at 3 AM.
func (m *CronManager) CleanupExpiredTokens(ctx context.Context) (string, error) {
	removed, err := m.tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		return "", fmt.Errorf("cleanup expired tokens: %w", err)
	}
	return fmt.Sprintf("Cleaned %d expired tokens", removed), nil
}

// CleanupOldLogs deletes cron job logs older than the retention window.
// Runs daily at 3:30 AM.
func (m *CronManager) CleanupOldLogs(ctx context.Context) (string, error) {
	cutoff := m.now().Add(-cronLogRetention)
	result := m.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		return "", fmt.Errorf("cleanup cron logs: %w", result.Error)
	}
	return fmt.Sprintf("Cleaned %d old cron logs", result.RowsAffected), nil
}
