// Package report aggregates per-opportunity outcomes into the run report:
// the audit trail of what the pipeline discovered, scored, generated and
// submitted during one pass.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/spigell/govcon-responder/internal/util"
)

// Outcome statuses. Every opportunity that reaches scoring ends up in
// exactly one of these.
const (
	OutcomeSkipped       = "skipped"
	OutcomePendingReview = "pending_review"
	OutcomeRejected      = "rejected"
	OutcomeSubmitted     = "submitted"
	OutcomeExpired       = "expired"
	OutcomeFailed        = "failed"
)

// Counts are the aggregate totals of one run.
type Counts struct {
	Discovered  int `json:"discovered"`
	Incomplete  int `json:"incomplete,omitempty"`
	ScreenedOut int `json:"screened_out,omitempty"`
	Scored      int `json:"scored"`
	Generated   int `json:"generated"`
	Submitted   int `json:"submitted"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Outcome is the final disposition of one opportunity.
type Outcome struct {
	OpportunityID string   `json:"opportunity_id"`
	Title         string   `json:"title,omitempty"`
	Source        string   `json:"source,omitempty"`
	Score         float64  `json:"score"`
	Degraded      bool     `json:"degraded,omitempty"`
	Decision      string   `json:"decision,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	Generated     bool     `json:"generated,omitempty"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
}

// Report is the per-run audit trail.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Counts     Counts    `json:"counts"`
	Outcomes   []Outcome `json:"outcomes"`
}

// New creates an empty report for one run.
func New(runID string, startedAt time.Time) *Report {
	return &Report{RunID: runID, StartedAt: startedAt}
}

// Append adds one outcome. The caller is the single writer.
func (r *Report) Append(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
}

// Finalize stamps the end time, orders the outcomes and derives the
// outcome-based counts. Discovered, Incomplete and ScreenedOut stay as set
// by the run controller.
func (r *Report) Finalize(at time.Time) {
	r.FinishedAt = at

	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].OpportunityID < r.Outcomes[j].OpportunityID
	})

	counts := Counts{
		Discovered:  r.Counts.Discovered,
		Incomplete:  r.Counts.Incomplete,
		ScreenedOut: r.Counts.ScreenedOut,
	}
	for _, outcome := range r.Outcomes {
		if outcome.Decision != "" {
			counts.Scored++
		}
		if outcome.Generated {
			counts.Generated++
		}
		switch outcome.Status {
		case OutcomeSubmitted:
			counts.Submitted++
		case OutcomeSkipped:
			counts.Skipped++
		case OutcomeFailed, OutcomeExpired:
			counts.Failed++
		}
	}
	r.Counts = counts
}

// Render writes the human-readable report table.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s: discovered %d, scored %d, generated %d, submitted %d, skipped %d, failed %d\n",
		r.RunID,
		r.Counts.Discovered,
		r.Counts.Scored,
		r.Counts.Generated,
		r.Counts.Submitted,
		r.Counts.Skipped,
		r.Counts.Failed,
	)
	if r.Counts.Incomplete > 0 || r.Counts.ScreenedOut > 0 {
		fmt.Fprintf(w, "dropped before scoring: %d incomplete, %d screened out\n",
			r.Counts.Incomplete, r.Counts.ScreenedOut)
	}

	if len(r.Outcomes) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Opportunity", "Title", "Score", "Decision", "Status", "Reasons"})

	for _, outcome := range r.Outcomes {
		score := fmt.Sprintf("%.2f", outcome.Score)
		if outcome.Degraded {
			score += " (degraded)"
		}
		t.AppendRow(table.Row{
			outcome.OpportunityID,
			util.TruncateForLog(outcome.Title, 40),
			score,
			outcome.Decision,
			outcome.Status,
			strings.Join(outcome.Reasons, "; "),
		})
	}
	t.Render()
}

// WriteFile persists the report as JSON.
func (r *Report) WriteFile(path string) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}
