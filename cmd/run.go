package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/govcon-responder/internal/ai"
	"github.com/spigell/govcon-responder/internal/ai/gemini"
	"github.com/spigell/govcon-responder/internal/application"
	"github.com/spigell/govcon-responder/internal/decision"
	"github.com/spigell/govcon-responder/internal/extract"
	"github.com/spigell/govcon-responder/internal/logger"
	"github.com/spigell/govcon-responder/internal/match"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
	"github.com/spigell/govcon-responder/internal/quota"
	"github.com/spigell/govcon-responder/internal/report"
	"github.com/spigell/govcon-responder/internal/run"
	"github.com/spigell/govcon-responder/internal/scraper"
	"github.com/spigell/govcon-responder/internal/screen"
	"github.com/spigell/govcon-responder/internal/secrets"
	"github.com/spigell/govcon-responder/internal/store"
	"github.com/spigell/govcon-responder/internal/submit"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptApprove = "Approve and submit"
	PromptReject  = "Reject"
	PromptShow    = "Show full application"
	PromptLater   = "Decide later"
	PromptQuit    = "Quit review"
)

var errExit = errors.New("exit requested")

var reviewPrompt = promptui.Select{
	Label: "Decision",
	Items: []string{PromptApprove, PromptReject, PromptShow, PromptLater, PromptQuit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full discovery, scoring and submission pass",
	Run: func(cmd *cobra.Command, _ []string) {
		runPass(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("reprocess", "r", false, "score opportunities again even if earlier runs already processed them")
	runCmd.Flags().StringP("opportunities-file", "o", "", "also read opportunities from a local JSON file")
}

// runPass is the main command for the cli.
func runPass(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the govcon-responder", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Company.Name == "" {
		logger.Fatal("company name is required",
			zap.String("hint", "set COMPANY_NAME or the company.name key in the configuration file"),
		)
	}

	prof, err := buildProfile(config, logger)
	if err != nil {
		logger.Fatal("building the capability profile", zap.Error(err))
	}

	logger.Info("capability profile ready",
		zap.String("profile_version", prof.Version()),
		zap.Int("capabilities", len(prof.Capabilities)),
		zap.Int("past_performance", len(prof.PastPerformance)),
	)

	db, err := store.Open(config.StorePath)
	if err != nil {
		logger.Fatal("opening the local store", zap.Error(err))
	}
	defer db.Close()

	used, err := db.SubmittedToday(ctx, time.Now())
	if err != nil {
		logger.Fatal("counting today's submissions", zap.Error(err))
	}
	counter := quota.NewCounter(config.MaxApplicationsPerDay, used)
	logger.Info("daily submission quota",
		zap.Int("limit", counter.Limit()),
		zap.Int("used", counter.Used()),
	)

	sources := prepareSources(cmd, config, logger)
	if len(sources) == 0 {
		logger.Fatal("no opportunity sources available",
			zap.String("hint", "set SAM_GOV_API_KEY, enable grants.gov or pass --opportunities-file"),
		)
	}

	registry, err := opportunity.LoadRegistry()
	if err != nil {
		logger.Fatal("loading the source registry", zap.Error(err))
	}

	matcher, composer, err := prepareAI(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("preparing the ai provider", zap.Error(err))
	}

	orchestrator := submit.NewOrchestrator(submit.NewManualAdapter(config.OutputDir, logger), 0, logger)

	controller := run.NewController(run.Deps{
		Sources:    sources,
		Normalizer: opportunity.NewNormalizer(registry, logger),
		Screens:    []screen.Screen{screen.NewExpired(), screen.NewHistory(cmd), screen.NewLimit()},
		Scorer:     match.NewScorer(matcher, match.Config{MinLead: config.MinLeadTime}, logger),
		Gate: decision.NewGate(decision.Config{
			MinScore:   config.MinScore,
			ReviewMode: config.ReviewMode,
			AutoSubmit: config.AutoSubmit,
		}, counter, logger),
		Generator: application.NewGenerator(composer, logger),
		Submitter: orchestrator,
		Store:     db,
		Quota:     counter,
	}, run.Config{
		MaxWorkers:       config.Workers,
		MaxOpportunities: config.MaxOpportunities,
	}, logger)

	result, err := controller.Run(ctx, prof)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	rep := result.Report
	if len(result.Pending) > 0 {
		session := &reviewSession{
			db:           db,
			counter:      counter,
			orchestrator: orchestrator,
			logger:       logger,
		}
		session.review(context.WithoutCancel(ctx), result.Pending, rep)
	}

	rep.Finalize(time.Now())
	rep.Render(os.Stdout)

	if config.OutputDir != "" {
		path := filepath.Join(config.OutputDir, fmt.Sprintf("run-%s.json", rep.RunID))
		if err := rep.WriteFile(path); err != nil {
			logger.Warn("writing the run report", zap.Error(err))
		} else {
			logger.Info("run report written", zap.String("path", path))
		}
	}
}

func buildProfile(config *Config, logger *zap.Logger) (*profile.CapabilityProfile, error) {
	extractor := extract.New(logger)
	docs, err := extractor.ExtractDir(config.Documents)
	if err != nil {
		return nil, fmt.Errorf("extracting documents from %q: %w", config.Documents, err)
	}

	builder := profile.NewBuilder(profile.Identity{
		Name:  config.Company.Name,
		DUNS:  config.Company.DUNS,
		NAICS: config.Company.NAICSCodes,
	}, logger)

	return builder.Build(docs)
}

func prepareSources(cmd *cobra.Command, config *Config, logger *zap.Logger) []scraper.Source {
	client := scraper.NewClient(30*time.Second, 3, logger)
	sources := make([]scraper.Source, 0, 3)

	if config.Sources.SamGov.Enabled {
		key, err := secrets.Load(secrets.Source{
			Name:  "sam.gov api key",
			Value: viper.GetString("sam-gov-api-key"),
			File:  config.Sources.SamGov.APIKeyFile,
		})
		if err != nil {
			logger.Warn("skipping the sam.gov source",
				zap.Error(err),
				zap.String("hint", "set SAM_GOV_API_KEY or sources.sam-gov.api-key-file"),
			)
		} else {
			sources = append(sources, scraper.NewSamGov(client, scraper.SamGovOptions{
				APIKey:   key,
				BaseURL:  config.Sources.SamGov.BaseURL,
				Lookback: config.Sources.SamGov.Lookback,
				Limit:    config.Sources.SamGov.Limit,
				PageSize: config.Sources.SamGov.PageSize,
			}, logger))
		}
	}

	if config.Sources.GrantsGov.Enabled {
		sources = append(sources, scraper.NewGrantsGov(client, scraper.GrantsGovOptions{
			SearchURL: config.Sources.GrantsGov.SearchURL,
			FetchURL:  config.Sources.GrantsGov.FetchURL,
			Keyword:   config.Sources.GrantsGov.Keyword,
			Limit:     config.Sources.GrantsGov.Limit,
			PageSize:  config.Sources.GrantsGov.PageSize,
		}, logger))
	}

	files := config.Sources.Files
	if flag := cmd.Flag("opportunities-file"); flag != nil && flag.Value.String() != "" {
		files = append(files, flag.Value.String())
	}
	for _, path := range files {
		sources = append(sources, scraper.NewFileSource(path, logger))
	}

	return sources
}

func prepareAI(ctx context.Context, config *AIConfig, log *zap.Logger) (ai.Matcher, ai.Composer, error) {
	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: viper.GetString("gemini-api-key"),
		File:  config.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set GEMINI_API_KEY or ai.gemini.api-key-file)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", config.Gemini.Model)

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:        apiKey,
		Model:         config.Gemini.Model,
		MaxRetries:    config.Gemini.MaxRetries,
		MaxConcurrent: config.Gemini.MaxConcurrent,
	}, genLogger)
	if err != nil {
		return nil, nil, err
	}

	matcher := gemini.NewMatcher(generator, genLogger, config.Gemini.MaxLogLength)
	composer := gemini.NewComposer(generator, genLogger, config.Gemini.MaxLogLength)

	return matcher, composer, nil
}

// reviewSession walks the operator through every drafted application the
// gate routed to review and finishes their report outcomes.
type reviewSession struct {
	db           *store.Store
	counter      *quota.Counter
	orchestrator *submit.Orchestrator
	logger       *zap.Logger
}

func (s *reviewSession) review(ctx context.Context, pending []*run.ReviewItem, rep *report.Report) {
	color.New(color.FgCyan, color.Bold).Printf("\n%d application(s) awaiting review\n", len(pending))

	for i, item := range pending {
		if err := s.reviewOne(ctx, item, i+1, len(pending), rep); err != nil {
			// Undecided items keep their pending outcome and stay
			// unprocessed so the next run offers them again.
			for _, rest := range pending[i:] {
				rep.Append(rest.Outcome)
			}
			s.logger.Info("review ended early", zap.Int("undecided", len(pending)-i))
			return
		}
	}
}

func (s *reviewSession) reviewOne(ctx context.Context, item *run.ReviewItem, idx, total int, rep *report.Report) error {
	printReviewSummary(idx, total, item)

	for {
		_, action, err := reviewPrompt.Run()
		if err != nil {
			return errExit
		}

		switch action {
		case PromptShow:
			fmt.Println()
			fmt.Println(item.Application.Render())
		case PromptLater:
			rep.Append(item.Outcome)
			return nil
		case PromptQuit:
			return errExit
		case PromptReject:
			return s.reject(ctx, item, rep)
		case PromptApprove:
			return s.approve(ctx, item, rep)
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func (s *reviewSession) reject(ctx context.Context, item *run.ReviewItem, rep *report.Report) error {
	if err := item.Application.Reject(); err != nil {
		color.Red("cannot reject: %v", err)
		return nil
	}
	s.markProcessed(ctx, item)

	outcome := item.Outcome
	outcome.Status = report.OutcomeRejected
	rep.Append(outcome)

	color.Yellow("rejected %s", item.Opportunity.ID())
	return nil
}

func (s *reviewSession) approve(ctx context.Context, item *run.ReviewItem, rep *report.Report) error {
	if !s.counter.Acquire() {
		color.Red("daily application quota reached (%d), leaving pending", s.counter.Limit())
		rep.Append(item.Outcome)
		return nil
	}

	if err := item.Application.Approve(); err != nil {
		s.counter.Release()
		color.Red("cannot approve: %v", err)
		rep.Append(item.Outcome)
		return nil
	}

	record, err := s.orchestrator.Submit(ctx, item.Application, item.Opportunity)
	outcome := item.Outcome
	if err != nil {
		outcome.Status = report.OutcomeFailed
		outcome.Error = err.Error()
		rep.Append(outcome)
		color.Red("submission failed: %v", err)
		return nil
	}

	if err := s.db.RecordSubmission(ctx, &store.Submission{
		ID:             record.ID,
		OpportunityID:  record.OpportunityID,
		Status:         record.Status,
		ConfirmationID: record.ConfirmationID,
		Retries:        record.Retries,
		SubmittedAt:    record.SubmittedAt,
	}); err != nil {
		s.logger.Warn("recording submission failed",
			zap.String("opportunity", item.Opportunity.ID()),
			zap.Error(err),
		)
	}

	switch record.Status {
	case submit.StatusSubmitted:
		s.markProcessed(ctx, item)
		outcome.Status = report.OutcomeSubmitted
		color.Green("submitted %s (confirmation %s)", item.Opportunity.ID(), record.ConfirmationID)
	case submit.StatusExpired:
		s.counter.Release()
		s.markProcessed(ctx, item)
		outcome.Status = report.OutcomeExpired
		outcome.Error = "due date passed before submission"
		color.Yellow("due date passed for %s, nothing submitted", item.Opportunity.ID())
	default:
		outcome.Status = report.OutcomeFailed
		outcome.Error = fmt.Sprintf("submission failed after %d retries", record.Retries)
		color.Red("submission failed for %s", item.Opportunity.ID())
	}

	rep.Append(outcome)
	return nil
}

func (s *reviewSession) markProcessed(ctx context.Context, item *run.ReviewItem) {
	if err := s.db.MarkProcessed(ctx, item.Opportunity, time.Now()); err != nil {
		s.logger.Warn("marking opportunity processed failed",
			zap.String("opportunity", item.Opportunity.ID()),
			zap.Error(err),
		)
	}
}

func printReviewSummary(idx, total int, item *run.ReviewItem) {
	color.New(color.FgCyan, color.Bold).Printf("\n[%d/%d] %s\n", idx, total, item.Opportunity.Title)

	fmt.Printf("  id:      %s\n", item.Opportunity.ID())
	if item.Opportunity.Agency != "" {
		fmt.Printf("  agency:  %s\n", item.Opportunity.Agency)
	}
	if !item.Opportunity.DueDate.IsZero() {
		fmt.Printf("  due:     %s\n", item.Opportunity.DueDate.Format("2006-01-02"))
	}
	if item.Opportunity.URL != "" {
		fmt.Printf("  url:     %s\n", item.Opportunity.URL)
	}

	score := fmt.Sprintf("%.2f", item.Result.Score)
	if item.Result.Degraded {
		score += " (degraded)"
	}
	fmt.Printf("  score:   %s\n", score)

	if len(item.Decision.Reasons) > 0 {
		fmt.Printf("  reasons: %s\n", strings.Join(item.Decision.Reasons, "; "))
	}
	for _, gap := range item.Result.Gaps {
		fmt.Printf("  gap:     [%s] %s\n", gap.Severity, gap.Requirement)
	}
	if item.Result.Rationale != "" {
		fmt.Printf("  rationale: %s\n", item.Result.Rationale)
	}
}
