package profile

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/extract"
)

// ErrEmptyProfile is returned when no usable capability documents are found.
// Callers treat it as fatal for the whole run.
var ErrEmptyProfile = errors.New("no usable capability documents found")

var (
	naicsPattern = regexp.MustCompile(`\b[1-9]\d{5}\b`)
	blankLines   = regexp.MustCompile(`\n\s*\n`)
)

// Identity carries the configured company identity folded into every profile.
type Identity struct {
	Name  string
	DUNS  string
	NAICS []string
}

// Builder folds extracted document text into one CapabilityProfile.
type Builder struct {
	identity Identity
	logger   *zap.Logger
}

func NewBuilder(identity Identity, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{identity: identity, logger: logger}
}

// Build classifies each document by its hint (falling back to a keyword
// heuristic), merges same-type blocks in order and assembles the profile.
func (b *Builder) Build(docs []*extract.Document) (*CapabilityProfile, error) {
	merged := map[extract.DocumentType][]string{}
	usable := 0

	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.Text) == "" {
			continue
		}

		kind := doc.Hint
		if kind == "" || kind == extract.DocumentOther {
			kind = classifyText(doc.Text)
		}

		merged[kind] = append(merged[kind], doc.Text)
		usable++

		b.logger.Debug("classified document",
			zap.String("path", doc.Path),
			zap.String("type", string(kind)),
		)
	}

	if usable == 0 {
		return nil, ErrEmptyProfile
	}

	profileText := strings.Join(merged[extract.DocumentProfile], "\n\n")
	pastText := strings.Join(merged[extract.DocumentPastPerformance], "\n\n")
	certText := strings.Join(merged[extract.DocumentCertification], "\n\n")
	allText := strings.Join([]string{profileText, pastText, certText}, "\n\n")

	p := &CapabilityProfile{
		CompanyName:     b.identity.Name,
		DUNS:            b.identity.DUNS,
		NAICS:           mergeNAICS(b.identity.NAICS, extractNAICS(allText)),
		Capabilities:    parseCapabilities(profileText),
		Certifications:  parseCertifications(certText, allText),
		PastPerformance: parsePastPerformance(pastText),
	}
	p.version = computeVersion(p)

	b.logger.Info("capability profile built",
		zap.String("company", p.CompanyName),
		zap.Strings("naics", p.NAICS),
		zap.Int("capabilities", len(p.Capabilities)),
		zap.Int("certifications", len(p.Certifications)),
		zap.Int("past_performance", len(p.PastPerformance)),
		zap.String("profile_version", p.Version()),
	)

	return p, nil
}

// classifyText is the heuristic fallback when a document carries no hint.
func classifyText(text string) extract.DocumentType {
	lower := strings.ToLower(text)

	certHits := 0
	for _, cert := range knownCertifications {
		if strings.Contains(lower, strings.ToLower(cert)) {
			certHits++
		}
	}

	pastHits := 0
	for _, marker := range []string{"client:", "contract #", "period of performance", "delivered", "outcome:"} {
		pastHits += strings.Count(lower, marker)
	}

	switch {
	case pastHits > 0 && pastHits >= certHits:
		return extract.DocumentPastPerformance
	case certHits > 1:
		return extract.DocumentCertification
	default:
		return extract.DocumentProfile
	}
}

// parseCapabilities splits profile text into capability statements, one per
// bullet line or paragraph, and tags each with the matched domain keywords.
func parseCapabilities(text string) []Capability {
	var caps []Capability

	for _, block := range splitBlocks(text) {
		for _, statement := range splitStatements(block) {
			if len(statement) < 20 {
				continue
			}
			caps = append(caps, Capability{
				Text: statement,
				Tags: inferTags(statement),
			})
		}
	}

	return caps
}

func splitStatements(block string) []string {
	lines := strings.Split(block, "\n")

	bullets := make([]string, 0, len(lines))
	plain := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if cut, ok := trimBullet(trimmed); ok {
			bullets = append(bullets, cut)
			continue
		}
		plain = append(plain, trimmed)
	}

	statements := bullets
	if joined := strings.Join(plain, " "); joined != "" {
		statements = append(statements, joined)
	}
	return statements
}

func trimBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• ", "· "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return line, false
}

func inferTags(statement string) []string {
	lower := strings.ToLower(statement)

	var tags []string
	seen := map[string]bool{}
	for _, kw := range append(append([]string{}, itKeywords...), cyberKeywords...) {
		if strings.Contains(lower, kw) && !seen[kw] {
			seen[kw] = true
			tags = append(tags, kw)
		}
	}
	return tags
}

// parseCertifications merges explicit certification document lines with known
// certification names found anywhere in the source text. Mentions are
// deduplicated case-insensitively, keeping the first casing seen.
func parseCertifications(certText, allText string) []string {
	var certs []string
	seen := map[string]bool{}

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || len(name) > 120 {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		certs = append(certs, name)
	}

	for _, line := range strings.Split(certText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if cut, ok := trimBullet(trimmed); ok {
			trimmed = cut
		}
		add(trimmed)
	}

	lower := strings.ToLower(allText)
	for _, cert := range knownCertifications {
		if strings.Contains(lower, strings.ToLower(cert)) {
			add(cert)
		}
	}

	return certs
}

// parsePastPerformance reads blank-line separated blocks. Within a block the
// first line names the client, a line prefixed with "outcome" or "result"
// becomes the outcome, and the rest is the scope summary.
func parsePastPerformance(text string) []PastPerformance {
	var entries []PastPerformance

	for _, block := range splitBlocks(text) {
		lines := strings.Split(block, "\n")

		entry := PastPerformance{}
		var scope []string
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if cut, ok := trimBullet(trimmed); ok {
				trimmed = cut
			}

			lower := strings.ToLower(trimmed)
			switch {
			case entry.Client == "" && len(scope) == 0 && entry.Outcome == "":
				entry.Client = strings.TrimSpace(trimPrefixFold(trimmed, "client:"))
			case strings.HasPrefix(lower, "outcome:"), strings.HasPrefix(lower, "result:"):
				entry.Outcome = strings.TrimSpace(trimmed[strings.Index(trimmed, ":")+1:])
			default:
				scope = append(scope, trimmed)
			}
		}

		entry.Scope = strings.Join(scope, " ")
		if entry.Client == "" && entry.Scope == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}

func trimPrefixFold(s, prefix string) string {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}

func splitBlocks(text string) []string {
	var blocks []string
	for _, block := range blankLines.Split(text, -1) {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// extractNAICS pulls NAICS-looking six-digit tokens out of free text,
// filtering by the valid sector prefixes.
func extractNAICS(text string) []string {
	var codes []string
	for _, match := range naicsPattern.FindAllString(text, -1) {
		if naicsSectors[match[:2]] {
			codes = append(codes, match)
		}
	}
	return codes
}

func mergeNAICS(configured, extracted []string) []string {
	seen := map[string]bool{}
	var merged []string

	for _, code := range append(append([]string{}, configured...), extracted...) {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		merged = append(merged, code)
	}

	sort.Strings(merged)
	return merged
}
