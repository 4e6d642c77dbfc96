package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/ai"
	"github.com/spigell/govcon-responder/internal/match"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
)

// sectionProfileStatements bounds how much of the profile grounds each
// section prompt.
const sectionProfileStatements = 12

// Generator produces applications section by section. Results are cached per
// (opportunity ID, profile version) so regenerating with unchanged inputs
// reuses the earlier package instead of spending more model calls.
type Generator struct {
	composer ai.Composer
	logger   *zap.Logger
	now      func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]*Application
}

func NewGenerator(composer ai.Composer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		composer: composer,
		logger:   logger,
		now:      time.Now,
		cache:    make(map[string]*Application),
	}
}

// Generate drafts every section for the opportunity. A failed section does
// not abort the application: it is kept as a placeholder with the failure
// note, which blocks approval until regenerated. Only fully successful
// applications are cached.
func (g *Generator) Generate(ctx context.Context, opp *opportunity.Opportunity, prof *profile.CapabilityProfile, result *match.MatchResult) (*Application, error) {
	if opp == nil {
		return nil, fmt.Errorf("opportunity is required")
	}
	if prof == nil {
		return nil, fmt.Errorf("capability profile is required")
	}
	if result == nil {
		return nil, fmt.Errorf("match result is required")
	}

	key := cacheKey(opp.ID(), prof.Version())
	if app := g.cached(key); app != nil {
		g.logger.Debug("reusing generated application",
			zap.String("opportunity_id", opp.ID()),
			zap.String("profile_version", prof.Version()),
		)
		return app, nil
	}

	relevant := prof.Relevant(opp.Requirements, opp.NAICS, sectionProfileStatements)
	sections := make([]Section, 0, len(SectionNames))
	for _, name := range SectionNames {
		text, err := g.composer.Compose(ctx, &ai.SectionRequest{
			Section:     name,
			Opportunity: opp,
			Profile:     relevant,
			Satisfied:   result.Satisfied,
		})
		if err != nil {
			g.logger.Warn("section generation failed",
				zap.String("opportunity_id", opp.ID()),
				zap.String("section", name),
				zap.Error(err),
			)
			sections = append(sections, Section{
				Name:   name,
				Text:   FailedSectionPlaceholder,
				Note:   err.Error(),
				Failed: true,
			})
			continue
		}
		sections = append(sections, Section{Name: name, Text: text})
	}

	app := New(opp.ID(), prof.Version(), sections, g.now())
	if app.Complete() {
		app = g.store(key, app)
	}

	g.logger.Info("application generated",
		zap.String("opportunity_id", opp.ID()),
		zap.Int("sections", len(app.Sections)),
		zap.Strings("failed_sections", app.FailedSections()),
	)

	return app, nil
}

func cacheKey(opportunityID, profileVersion string) string {
	return opportunityID + "@" + profileVersion
}

func (g *Generator) cached(key string) *Application {
	g.cacheMu.RLock()
	defer g.cacheMu.RUnlock()
	return g.cache[key]
}

// store caches the application unless another worker already cached one for
// the same key; the first stored package wins so repeated lookups stay
// stable.
func (g *Generator) store(key string, app *Application) *Application {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if existing, ok := g.cache[key]; ok {
		return existing
	}
	g.cache[key] = app
	return app
}
