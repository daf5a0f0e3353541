package service

import (
	"context"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

type activityReader interface {
	ListByStudent(ctx context.Context, studentKey string, limit int) ([]models.ActivityLog, error)
}

// ActivityService reads the student audit trail. Entries are only written by ledger
// operations.
type ActivityService struct {
	store      unitOfWork
	activities activityReader
}

// NewActivityService constructs ActivityService.
func NewActivityService(store unitOfWork, activities activityReader) *ActivityService {
	return &ActivityService{store: store, activities: activities}
}

// ListByStudent returns the newest entries of a student, at most limit of them.
func (s *ActivityService) ListByStudent(ctx context.Context, studentKey string, limit int) ([]models.ActivityLog, error) {
	if err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.StudentByKey(ctx, studentKey)
		return err
	}); err != nil {
		return nil, lookupError(err, "student")
	}
	logs, err := s.activities.ListByStudent(ctx, studentKey, limit)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list activity")
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, nil
}
