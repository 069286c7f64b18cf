package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BeginResult is the outcome of a reservation attempt. A non-admitted result
// carries the state of the record that already holds the (user, job) pair.
type BeginResult struct {
	Admitted         bool
	ReservationToken string
	ExistingState    entities.ApplicationState
}

// AttemptOutcome finalizes a reservation. Submitted outcomes carry the
// delivery receipt, failed ones the reason and whether the failure was
// transient. Only retry-eligible failures re-enter through the cooldown.
type AttemptOutcome struct {
	Submitted     bool
	FailureReason string
	RetryEligible bool
	Receipt       entities.DeliveryReceipt
}

// Applications is the ledger of submission attempts. It is the single writer
// of ApplicationRecord rows; all duplicate prevention rests on the store's
// conditional insert, not on in-process locking, so multiple orchestrator
// instances may share one ledger.
type Applications struct {
	db       *gorm.DB
	cooldown time.Duration
}

func NewApplicationsRepository(db *gorm.DB, retryCooldown time.Duration) *Applications {
	return &Applications{db: db, cooldown: retryCooldown}
}

// TryBegin atomically reserves the (user, job) pair. Exactly one of N
// concurrent calls with the same pair is admitted; the rest observe the
// existing record. A retry-eligible failed record older than the retry
// cooldown is superseded and the pair reserved anew; permanent failures
// block the pair for good.
func (a *Applications) TryBegin(ctx context.Context, userID, jobID int64,
	source entities.ApplicationSource) (BeginResult, error) {

	admitted, token, err := a.tryInsert(ctx, userID, jobID, source)
	if err != nil {
		return BeginResult{}, err
	}
	if admitted {
		return BeginResult{Admitted: true, ReservationToken: token}, nil
	}

	existing, err := a.live(ctx, userID, jobID)
	if err != nil {
		return BeginResult{}, err
	}
	if existing == nil {
		// The live row vanished between insert and read; a concurrent
		// supersede is in flight. Treat as a duplicate, the next run retries.
		return BeginResult{ExistingState: entities.ApplicationPending}, nil
	}

	if existing.State == entities.ApplicationFailed && existing.RetryEligible &&
		time.Since(existing.LastTransitionAt) >= a.cooldown {

		superseded, err := a.supersede(ctx, existing.ID)
		if err != nil {
			return BeginResult{}, err
		}
		if superseded {
			admitted, token, err = a.tryInsert(ctx, userID, jobID, source)
			if err != nil {
				return BeginResult{}, err
			}
			if admitted {
				return BeginResult{Admitted: true, ReservationToken: token}, nil
			}
			// Lost the re-insert race to another worker.
			return BeginResult{ExistingState: entities.ApplicationPending}, nil
		}
	}

	return BeginResult{ExistingState: existing.State}, nil
}

// Complete transitions the reserved record out of pending. Completing with a
// stale or unknown token is a no-op reported as ErrStaleReservation.
func (a *Applications) Complete(ctx context.Context, token string, outcome AttemptOutcome) error {

	now := time.Now().UTC()
	updates := map[string]any{
		"last_transition_at": now,
	}
	if outcome.Submitted {
		updates["state"] = entities.ApplicationSubmitted
		updates["submitted_at"] = now
		updates["delivery_receipt"] = outcome.Receipt.MessageID
	} else {
		updates["state"] = entities.ApplicationFailed
		updates["failure_reason"] = outcome.FailureReason
		updates["retry_eligible"] = outcome.RetryEligible
	}

	res := a.db.WithContext(ctx).
		Model(&entities.ApplicationRecord{}).
		Where("reservation_token = ? AND state = ?", token, entities.ApplicationPending).
		Updates(updates)

	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to complete reservation")
	}
	if res.RowsAffected == 0 {
		return entities.ErrStaleReservation
	}
	return nil
}

// Acknowledge records an external confirmation for a submitted application.
func (a *Applications) Acknowledge(ctx context.Context, token string) error {

	res := a.db.WithContext(ctx).
		Model(&entities.ApplicationRecord{}).
		Where("reservation_token = ? AND state = ?", token, entities.ApplicationSubmitted).
		Updates(map[string]any{
			"state":              entities.ApplicationAcknowledged,
			"last_transition_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to acknowledge application")
	}
	if res.RowsAffected == 0 {
		return entities.ErrStaleReservation
	}
	return nil
}

// ListForUser returns the user's attempt history, newest first, including
// superseded attempts.
func (a *Applications) ListForUser(ctx context.Context, userID int64) ([]entities.ApplicationRecord, error) {

	var records []entities.ApplicationRecord
	if err := a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ReapAbandoned fails pending reservations created before the cutoff. The
// failed rows become retry-eligible through the normal cooldown path.
func (a *Applications) ReapAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {

	res := a.db.WithContext(ctx).
		Model(&entities.ApplicationRecord{}).
		Where("state = ? AND superseded = ? AND created_at < ?",
			entities.ApplicationPending, false, cutoff).
		Updates(map[string]any{
			"state":              entities.ApplicationFailed,
			"failure_reason":     "reservation abandoned",
			"retry_eligible":     true,
			"last_transition_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (a *Applications) tryInsert(ctx context.Context, userID, jobID int64,
	source entities.ApplicationSource) (bool, string, error) {

	record := entities.ApplicationRecord{
		UserID:           userID,
		JobID:            jobID,
		State:            entities.ApplicationPending,
		Source:           source,
		ReservationToken: uuid.NewString(),
		LastTransitionAt: time.Now().UTC(),
	}

	res := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)

	if res.Error != nil {
		return false, "", errors.Wrap(res.Error, "failed to insert application record")
	}
	return res.RowsAffected == 1, record.ReservationToken, nil
}

func (a *Applications) live(ctx context.Context, userID, jobID int64) (*entities.ApplicationRecord, error) {

	var record entities.ApplicationRecord
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ? AND superseded = ?", userID, jobID, false).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (a *Applications) supersede(ctx context.Context, recordID int64) (bool, error) {

	res := a.db.WithContext(ctx).
		Model(&entities.ApplicationRecord{}).
		Where("id = ? AND superseded = ? AND state = ?",
			recordID, false, entities.ApplicationFailed).
		Update("superseded", true)

	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to supersede application record")
	}
	return res.RowsAffected == 1, nil
}
