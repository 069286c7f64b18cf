package repositories

import (
	"context"

	"github.com/jobdesk/autoapply/internal/entities"
	"gorm.io/gorm"
)

type Profiles struct {
	db *gorm.DB
}

func NewProfilesRepository(db *gorm.DB) *Profiles {
	return &Profiles{db: db}
}

func (p *Profiles) GetByID(ctx context.Context, userID int64) (*entities.UserProfile, error) {

	var profile entities.UserProfile
	if err := p.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetAutoApplyCandidates returns profiles opted into auto-apply, bounded by
// limit. The matcher narrows these down per posting.
func (p *Profiles) GetAutoApplyCandidates(ctx context.Context, limit int) ([]entities.UserProfile, error) {

	var profiles []entities.UserProfile
	if err := p.db.WithContext(ctx).
		Where("auto_apply_enabled = ?", true).
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
