package entities

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// UserProfile holds the data the matcher and artifact builder need. Profile
// CRUD lives outside this pipeline.
type UserProfile struct {
	ID               int64 `gorm:"primaryKey"`
	Email            string
	FullName         string
	Headline         string
	ResumeSummary    string
	Keywords         string
	TelegramChatID   int64
	AutoApplyEnabled bool
	CreatedAt        time.Time
}

func NewUserProfile(email, fullName, headline string, keywords []string) *UserProfile {
	return &UserProfile{
		Email:    email,
		FullName: fullName,
		Headline: headline,
		Keywords: strings.Join(keywords, ","),
	}
}

func (p *UserProfile) KeywordsAsArray() []string {
	if p.Keywords == "" {
		return []string{}
	}
	return lo.Map(strings.Split(p.Keywords, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
}
