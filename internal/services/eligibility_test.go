package services

import (
	"testing"
	"time"

	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/stretchr/testify/assert"
)

func posting(id int64, age time.Duration, now time.Time) entities.JobPosting {
	return entities.JobPosting{
		ID:           id,
		Title:        "Backend Engineer",
		Company:      "Acme",
		ContactEmail: "jobs@acme.example",
		Active:       true,
		CreatedAt:    now.Add(-age),
	}
}

func Test_Eligible_ShouldKeepOnlyActiveMailedRecentPostings(t *testing.T) {

	now := time.Now()
	filter, err := NewEligibilityFilter(7 * 24 * time.Hour)
	assert.NoError(t, err)

	inactive := posting(2, time.Hour, now)
	inactive.Active = false

	noEmail := posting(3, time.Hour, now)
	noEmail.ContactEmail = ""

	badEmail := posting(4, time.Hour, now)
	badEmail.ContactEmail = "not-an-address"

	eligible := filter.Eligible([]entities.JobPosting{
		posting(1, time.Hour, now), inactive, noEmail, badEmail,
	}, now)

	assert.Len(t, eligible, 1)
	assert.Equal(t, int64(1), eligible[0].ID)
}

func Test_Eligible_WhenPostingIsEightDaysOld_ShouldExclude(t *testing.T) {

	now := time.Now()
	filter, err := NewEligibilityFilter(7 * 24 * time.Hour)
	assert.NoError(t, err)

	eligible := filter.Eligible([]entities.JobPosting{
		posting(1, 8*24*time.Hour, now),
	}, now)

	assert.Empty(t, eligible)
}

func Test_Eligible_ShouldOrderNewestFirst(t *testing.T) {

	now := time.Now()
	filter, err := NewEligibilityFilter(7 * 24 * time.Hour)
	assert.NoError(t, err)

	eligible := filter.Eligible([]entities.JobPosting{
		posting(1, 3*24*time.Hour, now),
		posting(2, time.Hour, now),
		posting(3, 24*time.Hour, now),
	}, now)

	assert.Len(t, eligible, 3)
	assert.Equal(t, int64(2), eligible[0].ID)
	assert.Equal(t, int64(3), eligible[1].ID)
	assert.Equal(t, int64(1), eligible[2].ID)
}

func Test_Eligible_WhenPostingIsMalformed_ShouldSkipWithoutFailing(t *testing.T) {

	now := time.Now()
	filter, err := NewEligibilityFilter(7 * 24 * time.Hour)
	assert.NoError(t, err)

	malformed := posting(5, time.Hour, now)
	malformed.CreatedAt = time.Time{}

	eligible := filter.Eligible([]entities.JobPosting{
		malformed, posting(1, time.Hour, now),
	}, now)

	assert.Len(t, eligible, 1)
	assert.Equal(t, int64(1), eligible[0].ID)
}

func Test_NewEligibilityFilter_WithNonPositiveWindow_ShouldFail(t *testing.T) {

	_, err := NewEligibilityFilter(0)
	assert.Error(t, err)
}
