package submit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/opportunity"
)

// ManualAdapter materializes the application package on disk for hand
// submission. It is the default portal adapter: government portals have no
// public submission API, so the deliverable is a ready-to-upload package.
type ManualAdapter struct {
	dir    string
	logger *zap.Logger
}

func NewManualAdapter(dir string, logger *zap.Logger) *ManualAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManualAdapter{dir: dir, logger: logger}
}

func (m *ManualAdapter) Name() string { return "manual" }

func (m *ManualAdapter) Submit(_ context.Context, app *application.Application, opp *opportunity.Opportunity) (*PortalReceipt, error) {
	path, err := application.WritePackage(m.dir, app, opp)
	if err != nil {
		return nil, &SubmissionError{Portal: m.Name(), Err: fmt.Errorf("write package: %w", err)}
	}

	m.logger.Info("application package written",
		zap.String("opportunity_id", app.OpportunityID),
		zap.String("path", path),
	)

	return &PortalReceipt{Status: "submitted", ConfirmationID: path}, nil
}
