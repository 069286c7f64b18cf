package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/jobdesk/autoapply/internal/entities"
	gocache "github.com/patrickmn/go-cache"
)

type profileRepository interface {
	GetByID(ctx context.Context, userID int64) (*entities.UserProfile, error)
}

// CachedProfiles keeps recently read profiles in memory; a batch run touches
// the same profile once per matched posting.
type CachedProfiles struct {
	repo  profileRepository
	cache *gocache.Cache
}

func NewCachedProfiles(repo profileRepository) *CachedProfiles {
	return &CachedProfiles{repo: repo, cache: gocache.New(10*time.Minute, 20*time.Minute)}
}

func (c *CachedProfiles) GetByID(ctx context.Context, userID int64) (*entities.UserProfile, error) {

	key := strconv.FormatInt(userID, 10)
	if value, found := c.cache.Get(key); found {
		return value.(*entities.UserProfile), nil
	}

	profile, err := c.repo.GetByID(ctx, userID)
	if profile != nil {
		if err = c.cache.Add(key, profile, gocache.DefaultExpiration); err != nil {
			return profile, err
		}
	}

	return profile, err
}
