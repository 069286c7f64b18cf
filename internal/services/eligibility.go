package services

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/jobdesk/autoapply/internal/metrics"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// EligibilityFilter selects postings that may be auto-applied to: active,
// reachable by email and created within the rolling window. It holds no
// state besides configuration, so every invocation recomputes from the
// snapshot it is given.
type EligibilityFilter struct {
	window   time.Duration
	validate *validator.Validate
}

func NewEligibilityFilter(window time.Duration) (*EligibilityFilter, error) {

	if window <= 0 {
		return nil, errors.New("eligibility window must be greater than zero")
	}

	return &EligibilityFilter{window: window, validate: validator.New()}, nil
}

func (f *EligibilityFilter) Window() time.Duration {
	return f.window
}

// Eligible returns the eligible subset of the snapshot, newest postings
// first. Malformed postings are skipped with a warning, never fatal.
func (f *EligibilityFilter) Eligible(postings []entities.JobPosting, now time.Time) []entities.JobPosting {

	eligible := lo.Filter(postings, func(posting entities.JobPosting, _ int) bool {
		if !posting.Valid() {
			log.Warnf("skipping malformed posting %v (%q)", posting.ID, posting.Title)
			metrics.SkippedPostingsCounter.Inc()
			return false
		}
		return f.isEligible(posting, now)
	})

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	return eligible
}

func (f *EligibilityFilter) isEligible(posting entities.JobPosting, now time.Time) bool {

	if !posting.Active {
		return false
	}

	if posting.ContactEmail == "" || f.validate.Var(posting.ContactEmail, "email") != nil {
		return false
	}

	return now.Sub(posting.CreatedAt) <= f.window
}
