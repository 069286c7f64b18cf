package repositories

import (
	"context"
	"time"

	"github.com/jobdesk/autoapply/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postings is the pipeline's view of job postings. Rows are written by the
// ingestion syncer; the orchestrator only reads snapshots and bumps the
// denormalized application counter.
type Postings struct {
	db *gorm.DB
}

func NewPostingsRepository(db *gorm.DB) *Postings {
	return &Postings{db: db}
}

// Snapshot returns postings created since the given time. Filtering for
// eligibility happens in the service layer on every invocation; the query
// window only bounds the scan.
func (p *Postings) Snapshot(ctx context.Context, createdSince time.Time) ([]entities.JobPosting, error) {

	var postings []entities.JobPosting
	if err := p.db.WithContext(ctx).
		Where("created_at >= ?", createdSince).
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

func (p *Postings) IncrementApplications(ctx context.Context, id int64) error {
	return p.db.WithContext(ctx).
		Model(&entities.JobPosting{}).
		Where("id = ?", id).
		Update("applications_count", gorm.Expr("applications_count + 1")).Error
}

// Upsert inserts or refreshes postings by external source ID. Used by the
// ingestion syncer only.
func (p *Postings) Upsert(ctx context.Context, postings []entities.JobPosting) error {
	if len(postings) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "company", "contact_email", "active"}),
		}).
		Create(&postings).Error
}

// DeactivateMissing flips postings absent from the latest sync to inactive.
func (p *Postings) DeactivateMissing(ctx context.Context, presentExternalIDs []string) (int64, error) {

	res := p.db.WithContext(ctx).
		Model(&entities.JobPosting{}).
		Where("active = ? AND external_id NOT IN ?", true, presentExternalIDs).
		Update("active", false)
	return res.RowsAffected, res.Error
}
