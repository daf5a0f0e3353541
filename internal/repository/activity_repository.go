package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

// ActivityRepository appends and reads the student activity log. Rows are never updated.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append writes one activity entry.
func (r *ActivityRepository) Append(ctx context.Context, entry models.ActivityEntry) (*models.ActivityLog, error) {
	log := &models.ActivityLog{
		ID:           uuid.NewString(),
		StudentID:    entry.StudentID,
		ActivityType: entry.ActivityType,
		Description:  entry.Description,
		Timestamp:    time.Now().UTC(),
		IPAddress:    optional(truncate(entry.IPAddress, 45)),
		UserAgent:    optional(truncate(entry.UserAgent, 200)),
	}
	const query = `INSERT INTO activity_logs (id, student_id, activity_type, description, timestamp, ip_address, user_agent)
        VALUES (:id, :student_id, :activity_type, :description, :timestamp, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return nil, MapError(err, "append activity")
	}
	return log, nil
}

// ListByStudent returns the most recent entries for a student.
func (r *ActivityRepository) ListByStudent(ctx context.Context, studentKey string, limit int) ([]models.ActivityLog, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	const query = `SELECT a.id, a.student_id, a.activity_type, a.description, a.timestamp, a.ip_address, a.user_agent
        FROM activity_logs a JOIN students s ON s.id = a.student_id
        WHERE s.student_id = $1 ORDER BY a.timestamp DESC LIMIT $2`
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, studentKey, limit); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return logs, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// truncate drops invalid UTF-8 and keeps at most n characters, matching VARCHAR(n).
func truncate(v string, n int) string {
	v = strings.ToValidUTF8(v, "")
	runes := []rune(v)
	if len(runes) <= n {
		return v
	}
	return string(runes[:n])
}
