package submit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/opportunity"
)

type stubAdapter struct {
	receipt  *PortalReceipt
	err      error
	failures int
	calls    int
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) Submit(context.Context, *application.Application, *opportunity.Opportunity) (*PortalReceipt, error) {
	a.calls++
	if a.calls <= a.failures || a.receipt == nil {
		return nil, a.err
	}
	return a.receipt, nil
}

var submitNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func approvedApplication(t *testing.T) *application.Application {
	t.Helper()

	sections := make([]application.Section, 0, len(application.SectionNames))
	for _, name := range application.SectionNames {
		sections = append(sections, application.Section{Name: name, Text: "text for " + name})
	}
	app := application.New("sam.gov/A-1", "abc123", sections, submitNow)
	if err := app.Approve(); err != nil {
		t.Fatalf("failed to approve application: %v", err)
	}
	return app
}

func liveOpportunity() *opportunity.Opportunity {
	return &opportunity.Opportunity{
		Source:   "sam.gov",
		SourceID: "A-1",
		Title:    "SOC Support",
		DueDate:  submitNow.Add(10 * 24 * time.Hour),
	}
}

func newTestOrchestrator(adapter Adapter, maxRetries int) *Orchestrator {
	o := NewOrchestrator(adapter, maxRetries, zap.NewNop())
	o.now = func() time.Time { return submitNow }
	return o
}

func TestSubmitRecordsConfirmation(t *testing.T) {
	adapter := &stubAdapter{receipt: &PortalReceipt{Status: "submitted", ConfirmationID: "CONF-42"}}
	o := newTestOrchestrator(adapter, 3)

	record, err := o.Submit(context.Background(), approvedApplication(t), liveOpportunity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if record.Status != StatusSubmitted {
		t.Fatalf("unexpected status: %q", record.Status)
	}
	if record.ConfirmationID != "CONF-42" {
		t.Fatalf("unexpected confirmation: %q", record.ConfirmationID)
	}
	if record.Retries != 0 {
		t.Fatalf("unexpected retries: %d", record.Retries)
	}
	if record.ID == "" {
		t.Fatal("expected a record id")
	}
	if !record.SubmittedAt.Equal(submitNow) {
		t.Fatalf("unexpected timestamp: %v", record.SubmittedAt)
	}
}

func TestSubmitRetriesAdapterFailures(t *testing.T) {
	originalBackoff := backoff
	backoff = func(int) time.Duration { return 0 }
	defer func() { backoff = originalBackoff }()

	adapter := &stubAdapter{
		receipt:  &PortalReceipt{ConfirmationID: "CONF-42"},
		err:      &SubmissionError{Portal: "stub", Err: errors.New("gateway timeout")},
		failures: 2,
	}
	o := newTestOrchestrator(adapter, 3)

	record, err := o.Submit(context.Background(), approvedApplication(t), liveOpportunity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if adapter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", adapter.calls)
	}
	if record.Status != StatusSubmitted || record.Retries != 2 {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestSubmitFailureNeverEscalates(t *testing.T) {
	originalBackoff := backoff
	backoff = func(int) time.Duration { return 0 }
	defer func() { backoff = originalBackoff }()

	adapter := &stubAdapter{err: &SubmissionError{Portal: "stub", Err: errors.New("portal down")}}
	o := newTestOrchestrator(adapter, 2)

	record, err := o.Submit(context.Background(), approvedApplication(t), liveOpportunity())
	if err != nil {
		t.Fatalf("expected failed record instead of error, got %v", err)
	}

	if adapter.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", adapter.calls)
	}
	if record.Status != StatusFailed {
		t.Fatalf("unexpected status: %q", record.Status)
	}
}

func TestSubmitExpiredListingSkipsPortal(t *testing.T) {
	adapter := &stubAdapter{receipt: &PortalReceipt{ConfirmationID: "CONF-42"}}
	o := newTestOrchestrator(adapter, 3)

	opp := liveOpportunity()
	opp.DueDate = submitNow.Add(-time.Hour)

	record, err := o.Submit(context.Background(), approvedApplication(t), opp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if record.Status != StatusExpired {
		t.Fatalf("unexpected status: %q", record.Status)
	}
	if adapter.calls != 0 {
		t.Fatalf("expected no portal calls for an expired listing, got %d", adapter.calls)
	}
}

func TestSubmitRequiresApprovedApplication(t *testing.T) {
	adapter := &stubAdapter{receipt: &PortalReceipt{ConfirmationID: "CONF-42"}}
	o := newTestOrchestrator(adapter, 3)

	sections := []application.Section{{Name: "cover_letter", Text: "text"}}
	pending := application.New("sam.gov/A-1", "abc123", sections, submitNow)

	if _, err := o.Submit(context.Background(), pending, liveOpportunity()); err == nil {
		t.Fatal("expected error for unapproved application")
	}
	if adapter.calls != 0 {
		t.Fatalf("expected no portal calls, got %d", adapter.calls)
	}
}

func TestSubmissionErrorUnwraps(t *testing.T) {
	inner := errors.New("gateway timeout")
	err := &SubmissionError{Portal: "stub", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected SubmissionError to unwrap")
	}
	if err.Error() != "portal stub: gateway timeout" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
