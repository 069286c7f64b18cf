package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/stretchr/testify/assert"
)

type stubProfiles struct {
	profiles []entities.UserProfile
	err      error
}

func (s *stubProfiles) GetAutoApplyCandidates(_ context.Context, _ int) ([]entities.UserProfile, error) {
	return s.profiles, s.err
}

func candidate(id int64, keywords string) entities.UserProfile {
	return entities.UserProfile{
		ID:               id,
		Email:            fmt.Sprintf("user%d@mail.example", id),
		Keywords:         keywords,
		AutoApplyEnabled: true,
	}
}

func Test_MatchCandidates_WhenKeywordsMatchTitle_ShouldReturnMatchingUsers(t *testing.T) {

	profiles := &stubProfiles{profiles: []entities.UserProfile{
		candidate(1, "golang,backend"),
		candidate(2, "frontend,react"),
		candidate(3, "Backend"),
	}}

	matcher := NewPreferenceMatcher(profiles, 10)

	userIDs, err := matcher.MatchCandidates(context.Background(),
		entities.JobPosting{ID: 1, Title: "Senior Backend Engineer"})

	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, userIDs)
}

func Test_MatchCandidates_WhenMoreMatchesThanLimit_ShouldBoundResult(t *testing.T) {

	var all []entities.UserProfile
	for i := int64(1); i <= 20; i++ {
		all = append(all, candidate(i, "backend"))
	}

	matcher := NewPreferenceMatcher(&stubProfiles{profiles: all}, 5)

	userIDs, err := matcher.MatchCandidates(context.Background(),
		entities.JobPosting{ID: 1, Title: "Backend Engineer"})

	assert.NoError(t, err)
	assert.Len(t, userIDs, 5)
}

func Test_MatchCandidates_WhenNoKeywordsMatch_ShouldReturnEmpty(t *testing.T) {

	profiles := &stubProfiles{profiles: []entities.UserProfile{
		candidate(1, "frontend"),
		candidate(2, ""),
	}}

	matcher := NewPreferenceMatcher(profiles, 10)

	userIDs, err := matcher.MatchCandidates(context.Background(),
		entities.JobPosting{ID: 1, Title: "Backend Engineer"})

	assert.NoError(t, err)
	assert.Empty(t, userIDs)
}

func Test_MatchCandidates_WhenRepositoryFails_ShouldReturnError(t *testing.T) {

	matcher := NewPreferenceMatcher(&stubProfiles{err: fmt.Errorf("db is locked")}, 10)

	_, err := matcher.MatchCandidates(context.Background(),
		entities.JobPosting{ID: 1, Title: "Backend Engineer"})

	assert.Error(t, err)
}
