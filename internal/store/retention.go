package store

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy controls how long finished task rows are kept.
type RetentionPolicy struct {
	TaskMaxAge time.Duration
}

// DefaultRetention keeps finished tasks for seven days.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{TaskMaxAge: 7 * 24 * time.Hour}
}

// RunRetention deletes finished task rows older than the policy allows.
// Project rows and their logs are never pruned here.
func (s *Store) RunRetention(ctx context.Context, p RetentionPolicy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-p.TaskMaxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE completed_at IS NOT NULL AND completed_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("retention removed finished tasks")
	}
	return n, nil
}

// DBSizeBytes returns the database size in bytes.
func (s *Store) DBSizeBytes() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}
	return pageCount * pageSize, nil
}
