package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/jobdesk/autoapply/internal/logger"
	log "github.com/sirupsen/logrus"
)

type profileGetter interface {
	GetByID(ctx context.Context, userID int64) (*entities.UserProfile, error)
}

type draftClient interface {
	GenerateResponse(ctx context.Context, request string) (string, error)
}

// ArtifactBuilder renders the application email for a (user, job) pair. The
// drafter is optional; without it (or when it errors) the template letter is
// used.
type ArtifactBuilder struct {
	profiles profileGetter
	drafter  draftClient
	letter   *template.Template
}

const letterTemplate = `Dear {{.Company}} hiring team,

I would like to apply for the {{.Title}} position. {{.Headline}}

A short summary of my background:
{{.ResumeSummary}}

You can reach me at {{.Email}}.

Kind regards,
{{.FullName}}
`

func NewArtifactBuilder(profiles profileGetter, drafter draftClient) (*ArtifactBuilder, error) {

	letter, err := template.New("letter").Parse(letterTemplate)
	if err != nil {
		return nil, err
	}

	return &ArtifactBuilder{profiles: profiles, drafter: drafter, letter: letter}, nil
}

func (b *ArtifactBuilder) BuildArtifact(ctx context.Context, userID int64,
	posting entities.JobPosting) (entities.ApplicationArtifact, error) {

	profile, err := b.profiles.GetByID(ctx, userID)
	if err != nil {
		return entities.ApplicationArtifact{},
			&entities.ArtifactError{Reason: fmt.Sprintf("profile %v unavailable: %v", userID, err)}
	}

	if profile.Email == "" {
		return entities.ApplicationArtifact{}, &entities.ArtifactError{Reason: "missing profile email"}
	}
	if profile.ResumeSummary == "" {
		return entities.ApplicationArtifact{}, &entities.ArtifactError{Reason: "missing resume summary"}
	}

	body, err := b.buildBody(ctx, profile, posting)
	if err != nil {
		return entities.ApplicationArtifact{}, err
	}

	return entities.ApplicationArtifact{
		UserID:         userID,
		JobID:          posting.ID,
		RecipientEmail: posting.ContactEmail,
		ReplyTo:        profile.Email,
		Subject:        fmt.Sprintf("Application for %s at %s", posting.Title, posting.Company),
		Body:           body,
	}, nil
}

func (b *ArtifactBuilder) buildBody(ctx context.Context, profile *entities.UserProfile,
	posting entities.JobPosting) (string, error) {

	if b.drafter != nil {
		body, err := b.drafter.GenerateResponse(ctx, draftRequest(profile, posting))
		if err == nil {
			return body, nil
		}
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Errorf("failed to draft cover letter for user %v, falling back to template: %v", profile.ID, err)
	}

	var rendered bytes.Buffer
	err := b.letter.Execute(&rendered, map[string]string{
		"Company":       posting.Company,
		"Title":         posting.Title,
		"Headline":      profile.Headline,
		"ResumeSummary": profile.ResumeSummary,
		"Email":         profile.Email,
		"FullName":      profile.FullName,
	})
	if err != nil {
		return "", &entities.ArtifactError{Reason: "failed to render letter: " + err.Error()}
	}

	return rendered.String(), nil
}

func draftRequest(profile *entities.UserProfile, posting entities.JobPosting) (request string) {

	request = "Job title: " + posting.Title
	request += " Company: " + posting.Company
	request += " Candidate: " + profile.FullName
	if profile.Headline != "" {
		request += " Headline: " + profile.Headline
	}
	request += " Background: " + profile.ResumeSummary
	request += " Write a short, plain-text cover letter for this candidate applying to this job. " +
		"No placeholders, no markdown, at most three paragraphs."
	return request
}
