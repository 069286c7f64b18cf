package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jobdesk/autoapply/internal/clients/boards"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/stretchr/testify/assert"
)

type stubBoardClient struct {
	pages     [][]boards.Posting
	failAt    int
	withError bool
}

func (s *stubBoardClient) GetPostings(_ context.Context, _ time.Time,
	page, _ int) ([]boards.Posting, error) {

	if s.withError && page == s.failAt {
		return nil, fmt.Errorf("board api unavailable")
	}
	if page >= len(s.pages) {
		return nil, nil
	}
	return s.pages[page], nil
}

type recordingWriter struct {
	mu          sync.Mutex
	upserted    []entities.JobPosting
	deactivated [][]string
}

func (w *recordingWriter) Upsert(_ context.Context, postings []entities.JobPosting) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.upserted = append(w.upserted, postings...)
	return nil
}

func (w *recordingWriter) DeactivateMissing(_ context.Context, presentExternalIDs []string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deactivated = append(w.deactivated, presentExternalIDs)
	return 0, nil
}

func Test_Sync_WhenBoardReturnsPages_ShouldUpsertAllValidPostings(t *testing.T) {

	client := &stubBoardClient{pages: [][]boards.Posting{
		{
			{ExternalID: "ext-1", Title: "Backend Engineer", Company: "Acme",
				ContactEmail: "jobs@acme.example", Active: true, CreatedAt: time.Now()},
			{ExternalID: "ext-2", Title: "Platform Engineer", Company: "Globex",
				ContactEmail: "hiring@globex.example", Active: true, CreatedAt: time.Now()},
		},
		{
			{ExternalID: "ext-3", Title: "SRE", Company: "Initech",
				ContactEmail: "work@initech.example", Active: true, CreatedAt: time.Now()},
		},
	}}
	writer := &recordingWriter{}

	syncer, err := NewPostingSyncer(client, writer, 24*time.Hour, "@every 24h")
	assert.NoError(t, err)
	defer syncer.Stop()

	syncer.sync()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Len(t, writer.upserted, 3)
	assert.Equal(t, "ext-3", writer.upserted[2].ExternalID)

	// A complete pass deactivates everything the board stopped listing.
	assert.Len(t, writer.deactivated, 1)
	assert.Equal(t, []string{"ext-1", "ext-2", "ext-3"}, writer.deactivated[0])
}

func Test_Sync_WhenAPassIsAborted_ShouldNotDeactivateAnything(t *testing.T) {

	client := &stubBoardClient{
		pages: [][]boards.Posting{
			{{ExternalID: "ext-1", Title: "Backend Engineer", Company: "Acme",
				ContactEmail: "jobs@acme.example", Active: true, CreatedAt: time.Now()}},
		},
		withError: true,
		failAt:    1,
	}
	writer := &recordingWriter{}

	syncer, err := NewPostingSyncer(client, writer, 24*time.Hour, "@every 24h")
	assert.NoError(t, err)
	defer syncer.Stop()

	syncer.sync()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Len(t, writer.upserted, 1)
	assert.Empty(t, writer.deactivated)
}

func Test_Sync_WhenPostingIsMalformed_ShouldSkipItAndKeepTheRest(t *testing.T) {

	client := &stubBoardClient{pages: [][]boards.Posting{
		{
			{ExternalID: "", Title: "No external ID", CreatedAt: time.Now()},
			{ExternalID: "ext-1", Title: "", CreatedAt: time.Now()},
			{ExternalID: "ext-2", Title: "Backend Engineer", Company: "Acme",
				ContactEmail: "jobs@acme.example", Active: true, CreatedAt: time.Now()},
		},
	}}
	writer := &recordingWriter{}

	syncer, err := NewPostingSyncer(client, writer, 24*time.Hour, "@every 24h")
	assert.NoError(t, err)
	defer syncer.Stop()

	syncer.sync()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Len(t, writer.upserted, 1)
	assert.Equal(t, "ext-2", writer.upserted[0].ExternalID)
}
