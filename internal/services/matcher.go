package services

import (
	"context"
	"strings"

	"github.com/jobdesk/autoapply/internal/entities"
)

const candidateScanLimit = 1000

type candidateRepository interface {
	GetAutoApplyCandidates(ctx context.Context, limit int) ([]entities.UserProfile, error)
}

// PreferenceMatcher yields the bounded candidate user set for a posting by
// matching profile keywords against the posting title.
type PreferenceMatcher struct {
	profiles  candidateRepository
	maxPerJob int
}

func NewPreferenceMatcher(profiles candidateRepository, maxCandidatesPerJob int) *PreferenceMatcher {
	if maxCandidatesPerJob <= 0 {
		maxCandidatesPerJob = 10
	}
	return &PreferenceMatcher{profiles: profiles, maxPerJob: maxCandidatesPerJob}
}

func (m *PreferenceMatcher) MatchCandidates(ctx context.Context, posting entities.JobPosting) ([]int64, error) {

	profiles, err := m.profiles.GetAutoApplyCandidates(ctx, candidateScanLimit)
	if err != nil {
		return nil, err
	}

	title := strings.ToLower(posting.Title)

	var userIDs []int64
	for _, profile := range profiles {
		if matchesKeywords(title, profile.KeywordsAsArray()) {
			userIDs = append(userIDs, profile.ID)
			if len(userIDs) >= m.maxPerJob {
				break
			}
		}
	}
	return userIDs, nil
}

func matchesKeywords(title string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(title, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
