package services

import (
	"context"
	"time"

	"github.com/jobdesk/autoapply/internal/logger"
	"github.com/jobdesk/autoapply/internal/metrics"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type reservationReaper interface {
	ReapAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reconciler resolves reservations abandoned by a crashed or canceled batch
// run: pending records older than the timeout are failed, which routes them
// back through the normal cooldown retry path.
type Reconciler struct {
	ledger  reservationReaper
	cron    *cron.Cron
	timeout time.Duration
}

func NewReconciler(ledger reservationReaper, reservationTimeout time.Duration, cronSpec string) (*Reconciler, error) {

	if reservationTimeout <= 0 {
		return nil, errors.New("reservation timeout must be greater than zero")
	}
	if cronSpec == "" {
		cronSpec = "*/10 * * * *"
	}

	r := &Reconciler{
		ledger:  ledger,
		cron:    cron.New(),
		timeout: reservationTimeout,
	}

	_, err := r.cron.AddFunc(cronSpec, r.reapAbandoned)
	if err != nil {
		return nil, err
	}

	r.cron.Start()
	log.Infof("reconciler started, reservation timeout: %v", r.timeout)
	return r, nil
}

func (r *Reconciler) Stop() {
	r.cron.Stop()
}

func (r *Reconciler) reapAbandoned() {
	cutoff := time.Now().Add(-r.timeout)
	reaped, err := r.ledger.ReapAbandoned(context.Background(), cutoff)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to reap abandoned reservations: %v", err)
		return
	}
	if reaped > 0 {
		metrics.ReapedReservationsCounter.Add(float64(reaped))
		log.Infof("reaped %v abandoned reservations older than %v", reaped, cutoff)
	}
}
