package decision

import (
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/match"
	"github.com/spigell/govcon-responder/internal/quota"
)

func newGate(cfg Config, counter *quota.Counter) *Gate {
	return NewGate(cfg, counter, zap.NewNop())
}

func result(score float64) *match.MatchResult {
	return &match.MatchResult{OpportunityID: "sam.gov/OPP-1", Score: score}
}

func TestDecideSkipsBelowThreshold(t *testing.T) {
	gate := newGate(Config{MinScore: 0.6}, quota.NewCounter(10, 0))

	decision := gate.Decide(result(0.59))
	if decision.Kind != KindSkip {
		t.Fatalf("expected skip, got %q", decision.Kind)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != "below threshold" {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
}

func TestDecideThresholdPrecedesDegraded(t *testing.T) {
	gate := newGate(Config{MinScore: 0.6}, quota.NewCounter(10, 0))

	r := result(0.3)
	r.Degraded = true

	decision := gate.Decide(r)
	if decision.Kind != KindSkip {
		t.Fatalf("expected skip for a degraded result below threshold, got %q", decision.Kind)
	}
}

func TestDecideDegradedNeverSubmits(t *testing.T) {
	counter := quota.NewCounter(10, 0)
	gate := newGate(Config{MinScore: 0.6, ReviewMode: false, AutoSubmit: true}, counter)

	r := result(0.9)
	r.Degraded = true

	decision := gate.Decide(r)
	if decision.Kind != KindReview {
		t.Fatalf("expected review, got %q", decision.Kind)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != "degraded match, manual check required" {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
	if counter.Used() != 0 {
		t.Fatalf("expected no quota slot to be reserved, got %d", counter.Used())
	}
}

func TestDecideQuotaPrecedesAutoSubmit(t *testing.T) {
	counter := quota.NewCounter(10, 10)
	gate := newGate(Config{MinScore: 0.6, ReviewMode: false, AutoSubmit: true}, counter)

	decision := gate.Decide(result(0.9))
	if decision.Kind != KindReview {
		t.Fatalf("expected review, got %q", decision.Kind)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != "daily quota reached" {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
}

func TestDecideReviewModeForcesReview(t *testing.T) {
	gate := newGate(Config{MinScore: 0.6, ReviewMode: true, AutoSubmit: true}, quota.NewCounter(10, 0))

	decision := gate.Decide(result(0.82))
	if decision.Kind != KindReview {
		t.Fatalf("expected review, got %q", decision.Kind)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != "review mode enabled" {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
}

func TestDecideAutoSubmitOffForcesReview(t *testing.T) {
	gate := newGate(Config{MinScore: 0.6, ReviewMode: false, AutoSubmit: false}, quota.NewCounter(10, 0))

	decision := gate.Decide(result(0.82))
	if decision.Kind != KindReview {
		t.Fatalf("expected review, got %q", decision.Kind)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != "auto-submit disabled" {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
}

func TestDecideBothSafetySwitchesReported(t *testing.T) {
	gate := newGate(Config{MinScore: 0.6, ReviewMode: true, AutoSubmit: false}, quota.NewCounter(10, 0))

	decision := gate.Decide(result(0.82))
	if decision.Kind != KindReview {
		t.Fatalf("expected review, got %q", decision.Kind)
	}
	want := []string{"review mode enabled", "auto-submit disabled"}
	if len(decision.Reasons) != 2 || decision.Reasons[0] != want[0] || decision.Reasons[1] != want[1] {
		t.Fatalf("unexpected reasons: %+v", decision.Reasons)
	}
}

func TestDecideSubmitReservesQuotaSlot(t *testing.T) {
	counter := quota.NewCounter(10, 0)
	gate := newGate(Config{MinScore: 0.6, ReviewMode: false, AutoSubmit: true}, counter)

	decision := gate.Decide(result(0.9))
	if decision.Kind != KindSubmit {
		t.Fatalf("expected submit, got %q", decision.Kind)
	}
	if counter.Used() != 1 {
		t.Fatalf("expected 1 reserved slot, got %d", counter.Used())
	}
}

func TestDecideConcurrentSubmitsNeverExceedQuota(t *testing.T) {
	const limit = 3
	counter := quota.NewCounter(limit, 0)
	gate := newGate(Config{MinScore: 0.6, ReviewMode: false, AutoSubmit: true}, counter)

	var wg sync.WaitGroup
	kinds := make(chan Kind, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kinds <- gate.Decide(result(0.9)).Kind
		}()
	}
	wg.Wait()
	close(kinds)

	submits := 0
	for kind := range kinds {
		if kind == KindSubmit {
			submits++
		}
	}

	if submits != limit {
		t.Fatalf("expected exactly %d submits, got %d", limit, submits)
	}
}
