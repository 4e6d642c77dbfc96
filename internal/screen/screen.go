// Package screen filters the normalized opportunity list before scoring.
// Screens run sequentially; each one reports how many listings it dropped so
// the run report can account for every discovered opportunity.
package screen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/opportunity"
)

// Screen is a single screening step applied to the opportunity list.
type Screen interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, opps opportunity.Opportunities) (opportunity.Opportunities, Step, error)
}

// History exposes the processed-opportunity IDs. Satisfied by store.Store.
type History interface {
	SeenIDs(ctx context.Context) (map[string]bool, error)
}

// Deps aggregates dependencies shared across all screening steps.
type Deps struct {
	History History
	Logger  *zap.Logger
	Now     func() time.Time
}

// Step describes the result of executing one screening step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains settings consumed by the screens.
type Config struct {
	// MaxOpportunities bounds how many listings one run processes.
	MaxOpportunities int
}

// Status represents runtime information about a screen.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by screens that supply detailed status.
type statusProvider interface {
	Status() Status
}

// DisableByName marks the named screen as disabled while keeping it in the
// list.
func DisableByName(steps []Screen, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the screens sequentially and returns the surviving listings.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Screen, opps opportunity.Opportunities) (opportunity.Opportunities, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("screen disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, opps)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("screen step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		opps = next
	}

	return opps, nil
}

// Describe returns status entries for the provided screens.
func Describe(steps []Screen) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
