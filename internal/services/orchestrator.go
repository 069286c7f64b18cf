package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/jobdesk/autoapply/internal/config"
	"github.com/jobdesk/autoapply/internal/entities"
	"github.com/jobdesk/autoapply/internal/events"
	"github.com/jobdesk/autoapply/internal/logger"
	"github.com/jobdesk/autoapply/internal/metrics"
	"github.com/jobdesk/autoapply/internal/repositories"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type applicationLedger interface {
	TryBegin(ctx context.Context, userID, jobID int64,
		source entities.ApplicationSource) (repositories.BeginResult, error)
	Complete(ctx context.Context, token string, outcome repositories.AttemptOutcome) error
}

type postingSource interface {
	Snapshot(ctx context.Context, createdSince time.Time) ([]entities.JobPosting, error)
	IncrementApplications(ctx context.Context, id int64) error
}

type candidateMatcher interface {
	MatchCandidates(ctx context.Context, posting entities.JobPosting) ([]int64, error)
}

type artifactBuilder interface {
	BuildArtifact(ctx context.Context, userID int64,
		posting entities.JobPosting) (entities.ApplicationArtifact, error)
}

type deliveryAdapter interface {
	Send(ctx context.Context, artifact entities.ApplicationArtifact) (entities.DeliveryReceipt, error)
}

// BatchReport summarizes one orchestrator run. SkippedDuplicate is expected
// steady-state behavior, not an error. Deferred pairs were never touched and
// belong to the next run.
type BatchReport struct {
	Attempted        int
	Submitted        int
	Failed           int
	SkippedDuplicate int
	Deferred         int
}

// Orchestrator drives the auto-apply state machine: eligible postings are
// matched to candidates, each (user, job) pair is reserved through the
// ledger, delivered synchronously and finalized. Correctness under
// concurrent runs rests entirely on the ledger's atomic reservation.
type Orchestrator struct {
	bus           EventBus.Bus
	ledger        applicationLedger
	postings      postingSource
	matcher       candidateMatcher
	builder       artifactBuilder
	delivery      deliveryAdapter
	filter        *EligibilityFilter
	batchInterval time.Duration
	perRunCap     int
	workers       int
	batchDone     func(BatchReport)
}

func NewOrchestrator(bus EventBus.Bus, ledger applicationLedger, postings postingSource,
	matcher candidateMatcher, builder artifactBuilder, delivery deliveryAdapter,
	filter *EligibilityFilter, cfg config.PipelineConfig) (*Orchestrator, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if ledger == nil {
		return nil, errors.New("ledger is nil")
	}
	if filter == nil {
		return nil, errors.New("eligibility filter is nil")
	}

	return &Orchestrator{
		bus:           bus,
		ledger:        ledger,
		postings:      postings,
		matcher:       matcher,
		builder:       builder,
		delivery:      delivery,
		filter:        filter,
		batchInterval: cfg.BatchInterval,
		perRunCap:     cfg.PerRunCap,
		workers:       cfg.Workers,
	}, nil
}

// WithBatchDoneCallback registers a hook invoked after every batch.
func (o *Orchestrator) WithBatchDoneCallback(cb func(BatchReport)) {
	o.batchDone = cb
}

func (o *Orchestrator) Run(ctx context.Context) {
	for {
		startTime := time.Now()
		log.Infof("running auto-apply batch at %v", startTime)

		report, err := o.RunBatch(ctx, startTime, o.perRunCap)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("batch run aborted: %v", err)
		}

		executionTime := time.Since(startTime)
		metrics.BatchDuration.Observe(executionTime.Seconds())
		log.Infof("batch ended after %v: attempted=%v submitted=%v failed=%v skipped=%v deferred=%v",
			executionTime, report.Attempted, report.Submitted, report.Failed,
			report.SkippedDuplicate, report.Deferred)

		if o.batchDone != nil {
			o.batchDone(report)
		}

		var sleepTime time.Duration
		if executionTime <= o.batchInterval {
			sleepTime = o.batchInterval - executionTime
		} else {
			o.batchInterval = executionTime + time.Hour
			log.Infof("batch interval exceeded to %v", o.batchInterval)
		}

		log.Infof("next batch time is %v", time.Now().Add(sleepTime))
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepTime):
		}
	}
}

// RunBatch processes the eligible postings as of the given time, admitting
// at most perRunCap (user, job) attempts. Per-attempt failures are isolated;
// only a ledger storage failure aborts the run.
func (o *Orchestrator) RunBatch(ctx context.Context, asOf time.Time, perRunCap int) (BatchReport, error) {

	snapshot, err := o.postings.Snapshot(ctx, asOf.Add(-o.filter.Window()))
	if err != nil {
		return BatchReport{}, errors.Wrap(err, "failed to snapshot postings")
	}

	eligible := o.filter.Eligible(snapshot, asOf)
	if len(eligible) == 0 {
		return BatchReport{}, nil
	}

	run := &batchRun{orchestrator: o, gate: newCapGate(perRunCap)}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run.cancel = cancel

	type attempt struct {
		posting entities.JobPosting
		userID  int64
	}
	attempts := make(chan attempt)

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range attempts {
				run.process(runCtx, a.userID, a.posting)
			}
		}()
	}

	for _, posting := range eligible {
		userIDs, err := o.matcher.MatchCandidates(runCtx, posting)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to match candidates for posting %v: %v", posting.ID, err)
			continue
		}

		for _, userID := range userIDs {
			select {
			case attempts <- attempt{posting: posting, userID: userID}:
			case <-runCtx.Done():
			}
		}

		if runCtx.Err() != nil {
			break
		}
	}

	close(attempts)
	wg.Wait()

	report := run.report()
	if run.fatal.Load() != nil {
		return report, run.fatal.Load().(error)
	}
	return report, nil
}

// batchRun carries the shared counters of one RunBatch invocation. The gate
// is the cap guard: the cap bounds admitted attempts, not merely dispatched
// ones, so a pair that turns out to be a duplicate never costs another
// pair its slot.
type batchRun struct {
	orchestrator *Orchestrator
	cancel       context.CancelFunc
	fatal        atomic.Value

	gate      *capGate
	attempted atomic.Int64
	submitted atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	deferred  atomic.Int64
}

func (r *batchRun) report() BatchReport {
	return BatchReport{
		Attempted:        int(r.attempted.Load()),
		Submitted:        int(r.submitted.Load()),
		Failed:           int(r.failed.Load()),
		SkippedDuplicate: int(r.skipped.Load()),
		Deferred:         int(r.deferred.Load()),
	}
}

// capGate bounds admissions. An attempt holds an in-flight reservation while
// its TryBegin is outstanding; the reservation either becomes a consumed
// admission or is given back when the ledger reports an existing record.
// Deferral happens only once admissions alone have exhausted the cap, so a
// duplicate check in flight never manifests as another pair's deferral.
type capGate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	limit    int
	consumed int
	inflight int
}

func newCapGate(limit int) *capGate {
	g := &capGate{limit: limit}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquire blocks while free capacity is held only by outstanding TryBegins.
// Every in-flight reservation resolves in bounded time, so waiting is
// bounded by store roundtrips.
func (g *capGate) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if g.consumed >= g.limit {
			return false
		}
		if g.consumed+g.inflight < g.limit {
			g.inflight++
			return true
		}
		g.cond.Wait()
	}
}

func (g *capGate) admit() {
	g.mu.Lock()
	g.inflight--
	g.consumed++
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *capGate) release() {
	g.mu.Lock()
	g.inflight--
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (r *batchRun) process(ctx context.Context, userID int64, posting entities.JobPosting) {

	o := r.orchestrator

	if ctx.Err() != nil {
		r.deferred.Add(1)
		return
	}

	if !r.gate.acquire() {
		r.deferred.Add(1)
		return
	}

	start := time.Now()
	begin, err := o.ledger.TryBegin(ctx, userID, posting.ID, entities.SourceAutoApply)
	metrics.AttemptStepDuration.WithLabelValues("ledger_begin").Observe(time.Since(start).Seconds())

	if err != nil {
		// Ledger storage failure is the one fatal condition: without the
		// reservation guard nothing else is safe to run.
		r.gate.release()
		r.fatal.CompareAndSwap(nil, errors.Wrap(err, "ledger unavailable"))
		r.cancel()
		return
	}

	if !begin.Admitted {
		r.gate.release()
		r.skipped.Add(1)
		metrics.AttemptOutcomeCounter.WithLabelValues("skipped_duplicate").Inc()
		log.Debugf("skipping duplicate attempt for user %v, posting %v (existing state %v)",
			userID, posting.ID, begin.ExistingState)
		return
	}

	r.gate.admit()
	r.attempted.Add(1)
	r.finalize(ctx, begin.ReservationToken, userID, posting)
}

func (r *batchRun) finalize(ctx context.Context, token string, userID int64, posting entities.JobPosting) {

	o := r.orchestrator

	start := time.Now()
	artifact, err := o.builder.BuildArtifact(ctx, userID, posting)
	metrics.AttemptStepDuration.WithLabelValues("artifact").Observe(time.Since(start).Seconds())

	if err != nil {
		r.fail(ctx, token, userID, posting, err)
		return
	}

	start = time.Now()
	receipt, err := o.delivery.Send(ctx, artifact)
	metrics.AttemptStepDuration.WithLabelValues("delivery").Observe(time.Since(start).Seconds())

	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeEmail).
			Errorf("delivery failed for user %v, posting %v: %v", userID, posting.ID, err)
		r.fail(ctx, token, userID, posting, err)
		return
	}

	outcome := repositories.AttemptOutcome{Submitted: true, Receipt: receipt}
	if err = r.complete(ctx, token, outcome); err != nil {
		return
	}

	r.submitted.Add(1)
	metrics.AttemptOutcomeCounter.WithLabelValues("submitted").Inc()

	if err = o.postings.IncrementApplications(ctx, posting.ID); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to increment application counter for posting %v: %v", posting.ID, err)
	}

	o.bus.Publish(events.ApplicationSubmittedTopic, events.ApplicationSubmitted{
		UserID:  userID,
		Posting: posting,
		Receipt: receipt,
		Source:  entities.SourceAutoApply,
	})
}

func (r *batchRun) fail(ctx context.Context, token string, userID int64,
	posting entities.JobPosting, cause error) {

	// Only transient delivery failures re-enter through the cooldown;
	// permanent rejections and artifact problems block the pair.
	var deliveryErr *entities.DeliveryError
	retryEligible := errors.As(cause, &deliveryErr) && deliveryErr.Transient

	outcome := repositories.AttemptOutcome{
		FailureReason: cause.Error(),
		RetryEligible: retryEligible,
	}
	if err := r.complete(ctx, token, outcome); err != nil {
		return
	}

	r.failed.Add(1)
	metrics.AttemptOutcomeCounter.WithLabelValues("failed").Inc()

	r.orchestrator.bus.Publish(events.ApplicationFailedTopic, events.ApplicationFailed{
		UserID:  userID,
		Posting: posting,
		Reason:  cause.Error(),
	})
}

func (r *batchRun) complete(ctx context.Context, token string, outcome repositories.AttemptOutcome) error {

	// Completion must survive batch cancellation: the reservation is already
	// taken and leaving it pending defers cleanup to the reconciler.
	err := r.orchestrator.ledger.Complete(context.WithoutCancel(ctx), token, outcome)
	if err == nil {
		return nil
	}

	if errors.Is(err, entities.ErrStaleReservation) {
		log.Infof("stale reservation %v ignored", token)
		return nil
	}

	log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
		Errorf("failed to complete reservation %v: %v", token, err)
	return err
}
