// Package submit drives portal submission of approved applications and
// records every attempt outcome. The actual portal interaction lives behind
// the Adapter interface; submission failures never abort the run.
package submit

import (
	"context"
	"fmt"

	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/opportunity"
)

// PortalReceipt is what a portal returns for an accepted submission.
type PortalReceipt struct {
	Status         string
	ConfirmationID string
}

// Adapter performs the portal interaction for one application.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, app *application.Application, opp *opportunity.Opportunity) (*PortalReceipt, error)
}

// SubmissionError wraps a portal failure with the portal's name.
type SubmissionError struct {
	Portal string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("portal %s: %v", e.Portal, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
