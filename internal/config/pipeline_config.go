package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type PipelineConfig struct {
	EligibilityWindow   time.Duration `mapstructure:"eligibility_window"`
	RetryCooldown       time.Duration `mapstructure:"retry_cooldown"`
	ReservationTimeout  time.Duration `mapstructure:"reservation_timeout"`
	BatchInterval       time.Duration `mapstructure:"batch_interval"`
	PerRunCap           int           `mapstructure:"per_run_cap"`
	Workers             int           `mapstructure:"workers"`
	MaxCandidatesPerJob int           `mapstructure:"max_candidates_per_job"`
	ReconcileCronSpec   string        `mapstructure:"reconcile_cron_spec"`
	SyncCronSpec        string        `mapstructure:"sync_cron_spec"`
}

func (config PipelineConfig) validate() error {
	var errs []error

	if config.EligibilityWindow <= 0 {
		errs = append(errs, fmt.Errorf("eligibility_window must be greater than zero"))
	}
	if config.RetryCooldown <= 0 {
		errs = append(errs, fmt.Errorf("retry_cooldown must be greater than zero"))
	}
	if config.ReservationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reservation_timeout must be greater than zero"))
	}
	if config.PerRunCap <= 0 {
		errs = append(errs, fmt.Errorf("per_run_cap must be greater than zero"))
	}
	if config.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be greater than zero"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config PipelineConfig) bindEnvironmentVariables() error {
	var errs []error

	bindings := map[string]string{
		"pipeline.eligibility_window":     "ELIGIBILITY_WINDOW",
		"pipeline.retry_cooldown":         "RETRY_COOLDOWN",
		"pipeline.reservation_timeout":    "RESERVATION_TIMEOUT",
		"pipeline.batch_interval":         "BATCH_INTERVAL",
		"pipeline.per_run_cap":            "PER_RUN_CAP",
		"pipeline.workers":                "PIPELINE_WORKERS",
		"pipeline.max_candidates_per_job": "MAX_CANDIDATES_PER_JOB",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
