package gemini

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/ai"
	"github.com/spigell/govcon-responder/internal/util"
)

//go:embed prompts/compose.md
var composeSystemPrompt string

//go:embed prompts/sections/*.md
var sectionTemplates embed.FS

// Composer drafts one application section at a time, grounded by the
// opportunity, the relevant profile subset and the satisfied requirements.
type Composer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewComposer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Composer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Composer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Composer) Compose(ctx context.Context, req *ai.SectionRequest) (string, error) {
	if req == nil || req.Opportunity == nil || req.Profile == nil {
		return "", fmt.Errorf("section request is incomplete")
	}

	template, err := sectionTemplate(req.Section)
	if err != nil {
		return "", err
	}

	profileJSON, err := json.MarshalIndent(req.Profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}
	oppJSON, err := json.MarshalIndent(req.Opportunity, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal opportunity payload: %w", err)
	}

	message := buildSectionMessage(template, req, string(profileJSON), string(oppJSON))

	c.logger.Debug("section draft request",
		zap.String("opportunity_id", req.Opportunity.ID()),
		zap.String("section", req.Section),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", util.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, composeSystemPrompt, message)
	if err != nil {
		return "", err
	}

	c.logger.Debug("section draft response",
		zap.String("opportunity_id", req.Opportunity.ID()),
		zap.String("section", req.Section),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
	)

	return strings.TrimSpace(raw), nil
}

func sectionTemplate(section string) (string, error) {
	payload, err := sectionTemplates.ReadFile("prompts/sections/" + section + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown section %q", section)
	}
	return string(payload), nil
}

func buildSectionMessage(template string, req *ai.SectionRequest, profileJSON, oppJSON string) string {
	agency := strings.TrimSpace(req.Opportunity.Agency)
	if agency == "" {
		agency = "the issuing agency"
	}

	message := strings.ReplaceAll(template, "{{COMPANY}}", req.Profile.CompanyName)
	message = strings.ReplaceAll(message, "{{AGENCY}}", agency)
	message = strings.ReplaceAll(message, "{{PROFILE_JSON}}", profileJSON)
	message = strings.ReplaceAll(message, "{{OPPORTUNITY_JSON}}", oppJSON)
	message = strings.ReplaceAll(message, "{{SATISFIED_LIST}}", bulletList(req.Satisfied))
	return message
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none stated"
	}

	var builder strings.Builder
	for i, item := range items {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("- ")
		builder.WriteString(item)
	}
	return builder.String()
}
