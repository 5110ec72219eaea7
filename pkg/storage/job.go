package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind of generation a job tracks.
const (
	SongKind  = "song"
	VideoKind = "video"
)

// Status values for a Job. Transitions are forward only:
// queued -> processing -> completed|failed.
const (
	Queued     = "queued"
	Processing = "processing"
	Completed  = "completed"
	Failed     = "failed"
)

type Job struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Kind  string `gorm:"index;not null;default:''"`
	Owner string `gorm:"index;not null;default:''"`

	SourceText string `gorm:"not null;default:''"`
	Title      string `gorm:"not null;default:''"`
	Lyrics     string `gorm:"not null;default:''"`

	Genre        string `gorm:"not null;default:''"`
	Mood         string `gorm:"not null;default:''"`
	Style        string `gorm:"not null;default:''"`
	DurationSecs int    `gorm:"not null;default:0"`

	Status     string `gorm:"index;not null;default:'queued'"`
	ExternalID string `gorm:"index;not null;default:''"`
	Error      string `gorm:"not null;default:''"`

	Artifacts []Artifact `gorm:"foreignKey:JobID"`
}

type Artifact struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	JobID      string `gorm:"uniqueIndex:idx_artifacts_job_provider;not null"`
	ProviderID string `gorm:"uniqueIndex:idx_artifacts_job_provider;not null;default:''"`

	URL      string  `gorm:"not null;default:''"`
	File     string  `gorm:"not null;default:''"`
	Title    string  `gorm:"not null;default:''"`
	Duration float32 `gorm:"not null;default:0"`
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var v Job
	q := s.db.Preload("Artifacts")
	if err := q.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get Job %s: %w", id, err)
	}
	return &v, nil
}

// GetJobByExternalID correlates a provider callback with its local record.
func (s *Store) GetJobByExternalID(ctx context.Context, externalID string) (*Job, error) {
	var v Job
	q := s.db.Preload("Artifacts")
	if err := q.First(&v, "external_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get Job by external id %s: %w", externalID, err)
	}
	return &v, nil
}

func (s *Store) SetJob(ctx context.Context, v *Job) error {
	if err := s.db.Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set Job %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Job, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Job{}

	q := s.db.Preload("Artifacts")
	q = q.Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list Jobs: %w", err)
	}
	return vs, nil
}

// StartJob moves a queued job to processing and records the provider
// assigned external id. The update is guarded on the current status so
// that concurrent submitters can't both claim the same job.
func (s *Store) StartJob(ctx context.Context, id, externalID string) error {
	res := s.db.Model(&Job{}).
		Where("id = ? AND status = ?", id, Queued).
		Updates(map[string]interface{}{
			"status":      Processing,
			"external_id": externalID,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("storage: failed to start Job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// FinishJob moves a job from processing to a terminal status. It is a
// compare-and-swap on status so a callback and the reconciliation sweep
// racing on the same job can't both win; the loser gets ErrConflict and
// must treat it as a no-op.
func (s *Store) FinishJob(ctx context.Context, id, status, errMsg string) error {
	if status != Completed && status != Failed {
		return fmt.Errorf("storage: invalid terminal status %q for Job %s", status, id)
	}
	res := s.db.Model(&Job{}).
		Where("id = ? AND status IN (?)", id, []string{Queued, Processing}).
		Updates(map[string]interface{}{
			"status":     status,
			"error":      errMsg,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("storage: failed to finish Job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// AddArtifact persists an artifact at most once per (job, provider id)
// pair. It returns false without error when the artifact already exists,
// which makes duplicate callback deliveries a no-op.
func (s *Store) AddArtifact(ctx context.Context, v *Artifact) (bool, error) {
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "provider_id"}},
		DoNothing: true,
	}).Create(v)
	if res.Error != nil {
		return false, fmt.Errorf("storage: failed to add artifact %s to Job %s: %w", v.ProviderID, v.JobID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) HasArtifact(ctx context.Context, jobID, providerID string) (bool, error) {
	var count int64
	err := s.db.Model(&Artifact{}).
		Where("job_id = ? AND provider_id = ?", jobID, providerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("storage: failed to check artifact %s of Job %s: %w", providerID, jobID, err)
	}
	return count > 0, nil
}

func (s *Store) ListArtifacts(ctx context.Context, jobID string) ([]*Artifact, error) {
	vs := []*Artifact{}
	if err := s.db.Where("job_id = ?", jobID).Order("created_at").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list artifacts of Job %s: %w", jobID, err)
	}
	return vs, nil
}
