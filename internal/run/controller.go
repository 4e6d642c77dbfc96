// Package run drives one full responder pass: discover listings from
// every configured source, screen them, then push each survivor through
// scoring, the decision gate, generation and submission, collecting a
// RunReport along the way.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/decision"
	"github.com/spigell/govcon-responder/internal/match"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
	"github.com/spigell/govcon-responder/internal/quota"
	"github.com/spigell/govcon-responder/internal/report"
	"github.com/spigell/govcon-responder/internal/scraper"
	"github.com/spigell/govcon-responder/internal/screen"
	"github.com/spigell/govcon-responder/internal/store"
	"github.com/spigell/govcon-responder/internal/submit"
)

const defaultWorkers = 3

// Scorer produces a match result for one opportunity.
type Scorer interface {
	Score(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (*match.MatchResult, error)
}

// Gate turns a match result into a routing decision.
type Gate interface {
	Decide(result *match.MatchResult) *decision.Decision
}

// Generator drafts an application for one opportunity.
type Generator interface {
	Generate(ctx context.Context, opp *opportunity.Opportunity, prof *profile.CapabilityProfile, result *match.MatchResult) (*application.Application, error)
}

// Submitter delivers an approved application to a portal.
type Submitter interface {
	Submit(ctx context.Context, app *application.Application, opp *opportunity.Opportunity) (*submit.Record, error)
}

// Normalizer converts raw source records into opportunities.
type Normalizer interface {
	Normalize(source string, records []map[string]any) (opportunity.Opportunities, *opportunity.Stats, error)
}

// Store is the slice of persistence the controller needs.
type Store interface {
	SeenIDs(ctx context.Context) (map[string]bool, error)
	MarkProcessed(ctx context.Context, opp *opportunity.Opportunity, processedAt time.Time) error
	RecordSubmission(ctx context.Context, sub *store.Submission) error
}

// Deps carries the pipeline stages the controller coordinates.
type Deps struct {
	Sources    []scraper.Source
	Normalizer Normalizer
	Screens    []screen.Screen
	Scorer     Scorer
	Gate       Gate
	Generator  Generator
	Submitter  Submitter
	Store      Store
	Quota      *quota.Counter
}

// Config tunes one run.
type Config struct {
	MaxWorkers       int
	MaxOpportunities int
}

// ReviewItem is a drafted application waiting for a human decision.
// Outcome is pre-filled up to its final status so the review loop only
// has to finish and append it.
type ReviewItem struct {
	Opportunity *opportunity.Opportunity
	Result      *match.MatchResult
	Decision    *decision.Decision
	Application *application.Application
	Outcome     report.Outcome
}

// RunResult is everything one pass produced. The report is not yet
// finalized: pending items still need their outcomes appended once a
// human has reviewed them.
type RunResult struct {
	Report  *report.Report
	Pending []*ReviewItem
}

// Controller wires the pipeline stages together for a single pass.
type Controller struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

func NewController(deps Deps, cfg Config, logger *zap.Logger) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one full pass with the given profile. Cancelling ctx
// stops intake of new opportunities; pipelines already in flight finish
// on a detached context so no application is abandoned mid-generation.
func (c *Controller) Run(ctx context.Context, prof *profile.CapabilityProfile) (*RunResult, error) {
	if prof == nil {
		return nil, fmt.Errorf("run requires a capability profile")
	}

	runID := uuid.New().String()
	rep := report.New(runID, c.now())
	c.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("profile_version", prof.Version()),
		zap.Int("sources", len(c.deps.Sources)),
	)

	discovered, incomplete := c.discover(ctx)
	rep.Counts.Discovered = discovered.Len()
	rep.Counts.Incomplete = incomplete
	if discovered.Len() == 0 {
		c.logger.Info("no opportunities discovered")
		return &RunResult{Report: rep}, nil
	}

	screened, err := screen.Run(ctx, &screen.Config{MaxOpportunities: c.cfg.MaxOpportunities}, screen.Deps{
		History: c.deps.Store,
		Logger:  c.logger,
		Now:     c.now,
	}, c.deps.Screens, discovered)
	if err != nil {
		return nil, fmt.Errorf("screening: %w", err)
	}
	rep.Counts.ScreenedOut = discovered.Len() - screened.Len()

	pending := c.pump(ctx, prof, screened, rep)

	c.logger.Info("run pass complete",
		zap.String("run_id", runID),
		zap.Int("processed", len(rep.Outcomes)+len(pending)),
		zap.Int("pending_review", len(pending)),
	)
	return &RunResult{Report: rep, Pending: pending}, nil
}

// discover fetches and normalizes every source. A source that fails to
// fetch or normalize is logged and skipped so the rest of the run can
// proceed.
func (c *Controller) discover(ctx context.Context) (opportunity.Opportunities, int) {
	var batches []opportunity.Opportunities
	incomplete := 0
	for _, src := range c.deps.Sources {
		records, err := src.Fetch(ctx)
		if err != nil {
			c.logger.Warn("source unavailable, skipping",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		opps, stats, err := c.deps.Normalizer.Normalize(src.Name(), records)
		if err != nil {
			c.logger.Warn("source normalization failed, skipping",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		incomplete += len(stats.Incomplete)
		batches = append(batches, opps)
	}
	return opportunity.Merge(batches...), incomplete
}

// processed is what one worker hands back for a single opportunity.
type processed struct {
	opp     *opportunity.Opportunity
	outcome report.Outcome
	pending *ReviewItem
	record  *submit.Record

	// markProcessed is set for terminal outcomes only. Failed pipelines
	// stay unmarked so the next run retries them, and pending items are
	// marked by the review loop once a human has decided.
	markProcessed bool
}

// pump runs the bounded worker pool over the screened opportunities and
// collects results. It is the only writer of the report and the store.
func (c *Controller) pump(ctx context.Context, prof *profile.CapabilityProfile, opps opportunity.Opportunities, rep *report.Report) []*ReviewItem {
	detached := context.WithoutCancel(ctx)
	jobs := make(chan *opportunity.Opportunity)
	results := make(chan processed)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for opp := range jobs {
				results <- c.process(detached, prof, opp)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, opp := range opps {
			if ctx.Err() != nil {
				c.logger.Info("stopping opportunity intake",
					zap.Error(ctx.Err()),
				)
				return
			}
			select {
			case jobs <- opp:
			case <-ctx.Done():
				c.logger.Info("stopping opportunity intake",
					zap.Error(ctx.Err()),
				)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var pending []*ReviewItem
	for p := range results {
		if p.markProcessed {
			if err := c.deps.Store.MarkProcessed(detached, p.opp, c.now()); err != nil {
				c.logger.Warn("marking opportunity processed failed",
					zap.String("opportunity", p.opp.ID()),
					zap.Error(err),
				)
			}
		}
		if p.record != nil {
			if err := c.deps.Store.RecordSubmission(detached, submissionRow(p.record)); err != nil {
				c.logger.Warn("recording submission failed",
					zap.String("opportunity", p.opp.ID()),
					zap.Error(err),
				)
			}
		}
		if p.pending != nil {
			pending = append(pending, p.pending)
			continue
		}
		rep.Append(p.outcome)
	}
	return pending
}

// process runs the full pipeline for one opportunity.
func (c *Controller) process(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) processed {
	outcome := report.Outcome{
		OpportunityID: opp.ID(),
		Title:         opp.Title,
		Source:        opp.Source,
	}

	result, err := c.deps.Scorer.Score(ctx, prof, opp)
	if err != nil {
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		return processed{opp: opp, outcome: outcome}
	}
	outcome.Score = result.Score
	outcome.Degraded = result.Degraded

	dec := c.deps.Gate.Decide(result)
	outcome.Decision = string(dec.Kind)
	outcome.Reasons = dec.Reasons

	switch dec.Kind {
	case decision.KindSkip:
		outcome.Status = report.OutcomeSkipped
		return processed{opp: opp, outcome: outcome, markProcessed: true}
	case decision.KindReview:
		return c.draftForReview(ctx, prof, opp, result, dec, outcome)
	default:
		return c.submitApproved(ctx, prof, opp, result, outcome)
	}
}

func (c *Controller) draftForReview(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity, result *match.MatchResult, dec *decision.Decision, outcome report.Outcome) processed {
	app, err := c.deps.Generator.Generate(ctx, opp, prof, result)
	if err != nil {
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		return processed{opp: opp, outcome: outcome}
	}
	outcome.Generated = true
	outcome.Status = report.OutcomePendingReview
	return processed{opp: opp, pending: &ReviewItem{
		Opportunity: opp,
		Result:      result,
		Decision:    dec,
		Application: app,
		Outcome:     outcome,
	}}
}

// submitApproved finishes the autosubmit path. The gate already holds a
// quota slot for this opportunity; the slot is released only when no
// portal interaction happened (generation failure, incomplete draft or
// an expired listing).
func (c *Controller) submitApproved(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity, result *match.MatchResult, outcome report.Outcome) processed {
	app, err := c.deps.Generator.Generate(ctx, opp, prof, result)
	if err != nil {
		c.deps.Quota.Release()
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		return processed{opp: opp, outcome: outcome}
	}
	outcome.Generated = true

	if err := app.Approve(); err != nil {
		c.deps.Quota.Release()
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		return processed{opp: opp, outcome: outcome}
	}

	record, err := c.deps.Submitter.Submit(ctx, app, opp)
	if err != nil {
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		return processed{opp: opp, outcome: outcome}
	}

	switch record.Status {
	case submit.StatusSubmitted:
		outcome.Status = report.OutcomeSubmitted
		return processed{opp: opp, outcome: outcome, record: record, markProcessed: true}
	case submit.StatusExpired:
		c.deps.Quota.Release()
		outcome.Status = report.OutcomeExpired
		outcome.Error = "due date passed before submission"
		return processed{opp: opp, outcome: outcome, record: record, markProcessed: true}
	default:
		outcome.Status = report.OutcomeFailed
		outcome.Error = fmt.Sprintf("submission failed after %d retries", record.Retries)
		return processed{opp: opp, outcome: outcome, record: record}
	}
}

func submissionRow(record *submit.Record) *store.Submission {
	return &store.Submission{
		ID:             record.ID,
		OpportunityID:  record.OpportunityID,
		Status:         record.Status,
		ConfirmationID: record.ConfirmationID,
		Retries:        record.Retries,
		SubmittedAt:    record.SubmittedAt,
	}
}
