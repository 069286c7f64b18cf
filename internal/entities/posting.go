package entities

import "time"

// JobPosting is the pipeline's read-only view of a posting. Rows are owned by
// the ingestion syncer; the orchestrator only bumps ApplicationsCount.
type JobPosting struct {
	ID                int64  `gorm:"primaryKey"`
	ExternalID        string `gorm:"uniqueIndex"`
	Title             string
	Company           string
	ContactEmail      string
	Active            bool
	ApplicationsCount int64
	CreatedAt         time.Time
}

// Valid reports whether the posting carries the fields the pipeline relies
// on. Postings failing this check are skipped, never fatal to a batch.
func (p JobPosting) Valid() bool {
	return p.ID != 0 && p.Title != "" && !p.CreatedAt.IsZero()
}
