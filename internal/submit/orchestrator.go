package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/util"
)

// Record statuses. Expired means the due date passed before the submission
// was attempted.
const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

const defaultMaxRetries = 3

// backoff is stubbed in tests.
var backoff = func(attempt int) time.Duration {
	return time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
}

// Record is one append-only submission log entry.
type Record struct {
	ID             string    `json:"id"`
	OpportunityID  string    `json:"opportunity_id"`
	Status         string    `json:"status"`
	ConfirmationID string    `json:"confirmation_id,omitempty"`
	Retries        int       `json:"retries"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Orchestrator submits approved applications through the portal adapter with
// bounded retries. Adapter failures yield a failed Record, never an error:
// one lost submission must not abort the run.
type Orchestrator struct {
	adapter    Adapter
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(adapter Adapter, maxRetries int, logger *zap.Logger) *Orchestrator {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		adapter:    adapter,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit delivers one approved application. The due date is re-checked
// immediately before the portal call: a listing can expire between scoring
// and approval, and submitting to a closed listing is pointless.
func (o *Orchestrator) Submit(ctx context.Context, app *application.Application, opp *opportunity.Opportunity) (*Record, error) {
	if app == nil || opp == nil {
		return nil, fmt.Errorf("application and opportunity are required")
	}
	if app.Status() != application.StatusApproved {
		return nil, fmt.Errorf("application is %s, only approved applications can be submitted", app.Status())
	}

	record := &Record{
		ID:            uuid.New().String(),
		OpportunityID: app.OpportunityID,
		SubmittedAt:   o.now(),
	}

	if opp.DueDate.Before(o.now()) {
		o.logger.Warn("listing expired before submission",
			zap.String("opportunity_id", app.OpportunityID),
			zap.Time("due_date", opp.DueDate),
		)
		record.Status = StatusExpired
		return record, nil
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		receipt, err := o.adapter.Submit(ctx, app, opp)
		if err == nil {
			record.Status = StatusSubmitted
			record.Retries = attempt - 1
			if receipt != nil {
				record.ConfirmationID = receipt.ConfirmationID
			}
			o.logger.Info("application submitted",
				zap.String("opportunity_id", app.OpportunityID),
				zap.String("portal", o.adapter.Name()),
				zap.String("confirmation_id", record.ConfirmationID),
				zap.Int("retries", record.Retries),
			)
			return record, nil
		}
		lastErr = err

		if attempt < o.maxRetries {
			delay := backoff(attempt)
			o.logger.Warn("submission attempt failed",
				zap.String("opportunity_id", app.OpportunityID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if werr := util.WaitFor(ctx, delay); werr != nil {
				return nil, werr
			}
		}
	}

	o.logger.Error("submission failed after all attempts",
		zap.String("opportunity_id", app.OpportunityID),
		zap.String("portal", o.adapter.Name()),
		zap.Int("attempts", o.maxRetries),
		zap.Error(lastErr),
	)

	record.Status = StatusFailed
	record.Retries = o.maxRetries - 1
	return record, nil
}
