package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the ledger table.
func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&Job{})
}

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobsByUser returns the user's jobs newest first.
func (r *Repo) ListJobsByUser(ctx context.Context, user string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []Job
	if err := r.db.WithContext(ctx).
		Where("user_name = ?", user).
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *Repo) MarkJobRunning(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Updates(map[string]any{
			"status":     JobRunning,
			"started_at": at,
		}).Error
}

func (r *Repo) MarkJobDone(ctx context.Context, id string, chars int, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         JobDone,
			"response_chars": chars,
			"finished_at":    at,
			"error":          nil,
			"error_kind":     nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id, kind, errMsg string, chars int, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         JobFailed,
			"error_kind":     kind,
			"error":          errMsg,
			"response_chars": chars,
			"finished_at":    at,
		}).Error
}
