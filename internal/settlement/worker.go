package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// SettleEngagementArgs are the job arguments for a settlement retry.
type SettleEngagementArgs struct {
	EngagementID uuid.UUID `json:"engagement_id"`
}

// Kind implements river.JobArgs.
func (SettleEngagementArgs) Kind() string { return "settle_engagement" }

// Worker retries settlement in the background. River owns the retry and
// backoff schedule; the transfer itself is idempotent, so a job that races
// a concurrent settle is harmless.
type Worker struct {
	river.WorkerDefaults[SettleEngagementArgs]
	service *Service
}

// NewWorker creates a settlement Worker.
func NewWorker(service *Service) *Worker {
	return &Worker{service: service}
}

// Work runs one settlement attempt. Returning an error reschedules the job.
func (w *Worker) Work(ctx context.Context, job *river.Job[SettleEngagementArgs]) error {
	_, err := w.service.SettleEngagement(ctx, job.Args.EngagementID)
	return err
}
