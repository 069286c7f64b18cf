package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestLedger(t *testing.T, cooldown time.Duration) *Applications {

	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=busy_timeout(5000)"
	dbCtx, err := NewDbContext(dsn)
	if err != nil {
		t.Fatalf("could not create db context: %v", err)
	}
	t.Cleanup(func() { _ = dbCtx.Close() })

	if err = dbCtx.Migrate(); err != nil {
		t.Fatalf("could not migrate db: %v", err)
	}

	return NewApplicationsRepository(dbCtx.DB, cooldown)
}

func Test_TryBegin_WhenPairIsNew_ShouldAdmit(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.True(t, result.Admitted)
	assert.NotEmpty(t, result.ReservationToken)
}

func Test_TryBegin_WhenCalledConcurrently_ShouldAdmitExactlyOnce(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	const parallelism = 10
	results := make([]BeginResult, parallelism)
	errs := make([]error, parallelism)

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i := 0; i < parallelism; i++ {
		assert.NoError(t, errs[i])
		if results[i].Admitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}

func Test_TryBegin_WhenRecordIsPending_ShouldReportExistingState(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	_, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, entities.ApplicationPending, result.ExistingState)
}

func Test_TryBegin_WhenFailedWithinCooldown_ShouldRejectRetry(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	err = ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{FailureReason: "mail throttled", RetryEligible: true})
	assert.NoError(t, err)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, entities.ApplicationFailed, result.ExistingState)
}

func Test_TryBegin_WhenCooldownElapsed_ShouldSupersedeAndAdmit(t *testing.T) {

	ledger := newTestLedger(t, 20*time.Millisecond)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	err = ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{FailureReason: "mail throttled", RetryEligible: true})
	assert.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.True(t, result.Admitted)

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
}

func Test_TryBegin_WhenFailureIsPermanent_ShouldNeverAdmitAgain(t *testing.T) {

	ledger := newTestLedger(t, 20*time.Millisecond)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	err = ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{FailureReason: "recipient address rejected"})
	assert.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, entities.ApplicationFailed, result.ExistingState)

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
}

func Test_TryBegin_AfterReapedReservation_ShouldAdmitOnceCooldownElapsed(t *testing.T) {

	ledger := newTestLedger(t, 20*time.Millisecond)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	// Age the reservation past the cutoff and reap it.
	err = ledger.db.Model(&entities.ApplicationRecord{}).
		Where("reservation_token = ?", begin.ReservationToken).
		Update("created_at", time.Now().Add(-time.Hour)).Error
	assert.NoError(t, err)

	reaped, err := ledger.ReapAbandoned(context.Background(), time.Now().Add(-30*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	time.Sleep(40 * time.Millisecond)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.True(t, result.Admitted)
}

func Test_TryBegin_WhenRecordSubmitted_ShouldNeverAdmitAgain(t *testing.T) {

	ledger := newTestLedger(t, time.Millisecond)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	err = ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{Submitted: true, Receipt: entities.DeliveryReceipt{MessageID: "msg-1"}})
	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	result, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, entities.ApplicationSubmitted, result.ExistingState)
}

func Test_Complete_WhenCalledTwice_ShouldReportStaleReservation(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	outcome := AttemptOutcome{Submitted: true, Receipt: entities.DeliveryReceipt{MessageID: "msg-1"}}
	assert.NoError(t, ledger.Complete(context.Background(), begin.ReservationToken, outcome))

	err = ledger.Complete(context.Background(), begin.ReservationToken, outcome)
	assert.True(t, errors.Is(err, entities.ErrStaleReservation))

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, entities.ApplicationSubmitted, history[0].State)
	assert.Equal(t, "msg-1", history[0].DeliveryReceipt)
}

func Test_Complete_WithUnknownToken_ShouldReportStaleReservation(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	err := ledger.Complete(context.Background(), "no-such-token", AttemptOutcome{Submitted: true})
	assert.True(t, errors.Is(err, entities.ErrStaleReservation))
}

func Test_Complete_WhenRecordFailed_ShouldNotTransitionToSubmitted(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	assert.NoError(t, ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{FailureReason: "mail bounced"}))

	err = ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{Submitted: true, Receipt: entities.DeliveryReceipt{MessageID: "msg-2"}})
	assert.True(t, errors.Is(err, entities.ErrStaleReservation))

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, entities.ApplicationFailed, history[0].State)
}

func Test_Acknowledge_WhenSubmitted_ShouldTransition(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	assert.NoError(t, ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{Submitted: true, Receipt: entities.DeliveryReceipt{MessageID: "msg-1"}}))

	assert.NoError(t, ledger.Acknowledge(context.Background(), begin.ReservationToken))

	err = ledger.Acknowledge(context.Background(), begin.ReservationToken)
	assert.True(t, errors.Is(err, entities.ErrStaleReservation))
}

func Test_ReapAbandoned_ShouldFailStalePendingOnly(t *testing.T) {

	ledger := newTestLedger(t, time.Hour)

	stale, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	_, err = ledger.TryBegin(context.Background(), 2, 100, entities.SourceAutoApply)
	assert.NoError(t, err)

	// Age the first reservation past the cutoff.
	err = ledger.db.Model(&entities.ApplicationRecord{}).
		Where("reservation_token = ?", stale.ReservationToken).
		Update("created_at", time.Now().Add(-time.Hour)).Error
	assert.NoError(t, err)

	reaped, err := ledger.ReapAbandoned(context.Background(), time.Now().Add(-30*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, entities.ApplicationFailed, history[0].State)
	assert.Equal(t, "reservation abandoned", history[0].FailureReason)

	history, err = ledger.ListForUser(context.Background(), 2)
	assert.NoError(t, err)
	assert.Equal(t, entities.ApplicationPending, history[0].State)
}

func Test_ListForUser_ShouldReturnNewestFirst(t *testing.T) {

	ledger := newTestLedger(t, time.Millisecond)

	begin, err := ledger.TryBegin(context.Background(), 1, 100, entities.SourceAutoApply)
	assert.NoError(t, err)
	assert.NoError(t, ledger.Complete(context.Background(), begin.ReservationToken,
		AttemptOutcome{FailureReason: "mail bounced"}))

	time.Sleep(5 * time.Millisecond)

	_, err = ledger.TryBegin(context.Background(), 1, 200, entities.SourceAutoApply)
	assert.NoError(t, err)

	history, err := ledger.ListForUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, int64(200), history[0].JobID)
	assert.Equal(t, int64(100), history[1].JobID)
}
