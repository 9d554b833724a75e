package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/raceday/internal/modules/conservation"
)

// TelemetryJob periodically logs the scenario rejection statistics so a
// drifting simulation upstream shows up in the logs even when nobody is
// polling the stats endpoint.
type TelemetryJob struct {
	validator *conservation.Validator
	log       zerolog.Logger
}

// NewTelemetryJob creates the telemetry job.
func NewTelemetryJob(validator *conservation.Validator, log zerolog.Logger) *TelemetryJob {
	return &TelemetryJob{
		validator: validator,
		log:       log.With().Str("job", "rejection_telemetry").Logger(),
	}
}

// Name returns the job name
func (j *TelemetryJob) Name() string {
	return "rejection_telemetry"
}

// Run logs the current counters. Nothing validated yet is not an error.
func (j *TelemetryJob) Run() error {
	stats := j.validator.Stats()
	if stats.TotalValidated == 0 {
		return nil
	}

	event := j.log.Info()
	if stats.RejectionRate() > 0.1 {
		// A tenth of all scenarios failing conservation means the simulator
		// is misconfigured, not unlucky.
		event = j.log.Warn()
	}
	event.
		Int64("validated", stats.TotalValidated).
		Int64("rejected", stats.TotalRejected).
		Float64("rejection_rate", stats.RejectionRate()).
		Interface("by_reason", stats.ByReason).
		Msg("Scenario rejection telemetry")
	return nil
}
