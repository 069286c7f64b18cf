package services

import (
	"context"
	"time"

	"github.com/jobdesk/autoapply/internal/clients/boards"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/jobdesk/autoapply/internal/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type boardClient interface {
	GetPostings(ctx context.Context, since time.Time, page, perPage int) ([]boards.Posting, error)
}

type postingsWriter interface {
	Upsert(ctx context.Context, postings []entities.JobPosting) error
	DeactivateMissing(ctx context.Context, presentExternalIDs []string) (int64, error)
}

// PostingSyncer pulls postings from the board API into the local view. It is
// the sole writer of posting rows; validation happens here, at the ingestion
// boundary, so readers never re-check field presence.
type PostingSyncer struct {
	client   boardClient
	postings postingsWriter
	cron     *cron.Cron
	window   time.Duration
}

func NewPostingSyncer(client boardClient, postings postingsWriter,
	window time.Duration, cronSpec string) (*PostingSyncer, error) {

	if window <= 0 {
		return nil, errors.New("sync window must be greater than zero")
	}
	if cronSpec == "" {
		cronSpec = "@every 1h"
	}

	s := &PostingSyncer{
		client:   client,
		postings: postings,
		cron:     cron.New(),
		window:   window,
	}

	_, err := s.cron.AddFunc(cronSpec, s.sync)
	if err != nil {
		return nil, err
	}

	s.cron.Start()
	log.Infof("posting syncer started, window: %v", s.window)
	return s, nil
}

func (s *PostingSyncer) Stop() {
	s.cron.Stop()
}

func (s *PostingSyncer) sync() {

	var pageSize, syncedTotal = 100, 0
	since := time.Now().Add(-s.window)

	var seenExternalIDs []string
	complete := false

	for pageNum := 0; ; pageNum++ {

		fetched, err := s.client.GetPostings(context.Background(), since, pageNum, pageSize)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeBoardApi).
				Errorf("failed to fetch postings page %v: %v", pageNum, err)
			break
		}
		if len(fetched) == 0 {
			complete = true
			break
		}

		batch := make([]entities.JobPosting, 0, len(fetched))
		for _, posting := range fetched {
			if posting.ExternalID == "" || posting.Title == "" || posting.CreatedAt.IsZero() {
				log.Warnf("skipping malformed board posting %q (%q)", posting.ExternalID, posting.Title)
				continue
			}
			seenExternalIDs = append(seenExternalIDs, posting.ExternalID)
			batch = append(batch, entities.JobPosting{
				ExternalID:   posting.ExternalID,
				Title:        posting.Title,
				Company:      posting.Company,
				ContactEmail: posting.ContactEmail,
				Active:       posting.Active,
				CreatedAt:    posting.CreatedAt,
			})
		}

		if err = s.postings.Upsert(context.Background(), batch); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to upsert postings: %v", err)
			break
		}
		syncedTotal += len(batch)
	}

	// Postings the board stopped listing are flipped inactive, but only
	// after a complete pass: an aborted sync must not deactivate postings
	// it never got to see.
	if complete && len(seenExternalIDs) > 0 {
		deactivated, err := s.postings.DeactivateMissing(context.Background(), seenExternalIDs)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to deactivate delisted postings: %v", err)
		} else if deactivated > 0 {
			log.Infof("deactivated %v delisted postings", deactivated)
		}
	}

	log.Infof("synced %v postings", syncedTotal)
}
