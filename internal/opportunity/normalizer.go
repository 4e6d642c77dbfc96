package opportunity

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// defaultLayouts are tried after the per-source date layouts.
var defaultLayouts = []string{time.RFC3339, "2006-01-02", "01/02/2006"}

// IncompleteListingWarning records a listing dropped during normalization
// because a required field was missing or unreadable.
type IncompleteListingWarning struct {
	Source   string   `json:"source"`
	SourceID string   `json:"source_id"`
	Title    string   `json:"title,omitempty"`
	Missing  []string `json:"missing"`
}

func (w *IncompleteListingWarning) String() string {
	return fmt.Sprintf("%s/%s: missing %s", w.Source, w.SourceID, strings.Join(w.Missing, ", "))
}

// Stats summarizes one normalization pass over a source's raw listings.
type Stats struct {
	Received   int
	Normalized int
	Duplicates int
	Incomplete []*IncompleteListingWarning
}

// Normalizer maps raw source listings onto canonical Opportunity records
// using the registry's per-source mapping tables.
type Normalizer struct {
	registry *Registry
	logger   *zap.Logger
}

func NewNormalizer(registry *Registry, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{registry: registry, logger: logger}
}

// rawListing is the canonical intermediate shape. Raw values are weakly
// typed, so numbers and single values decode into the string fields and the
// code list as needed.
type rawListing struct {
	SourceID     string   `json:"source_id"`
	Title        string   `json:"title"`
	Agency       string   `json:"agency"`
	Requirements string   `json:"requirements"`
	NAICS        []string `json:"naics"`
	SetAside     string   `json:"set_aside"`
	DueDate      string   `json:"due_date"`
	PostedDate   string   `json:"posted_date"`
	URL          string   `json:"url"`
}

// Normalize maps one source's raw listings onto Opportunity records. Listings
// missing a required field are dropped with a warning, and listings sharing a
// source identifier are deduplicated keeping the latest posting date.
func (n *Normalizer) Normalize(source string, records []map[string]any) (Opportunities, *Stats, error) {
	spec, err := n.registry.Spec(source)
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{Received: len(records)}
	byID := make(map[string]int, len(records))
	var opps Opportunities

	for _, record := range records {
		opp, warning := n.normalizeOne(spec, record)
		if warning != nil {
			stats.Incomplete = append(stats.Incomplete, warning)
			n.logger.Warn("dropping incomplete listing",
				zap.String("source", warning.Source),
				zap.String("source_id", warning.SourceID),
				zap.Strings("missing", warning.Missing),
			)
			continue
		}

		if i, ok := byID[opp.SourceID]; ok {
			stats.Duplicates++
			if opp.PostedDate.After(opps[i].PostedDate) {
				opps[i] = opp
			}
			continue
		}
		byID[opp.SourceID] = len(opps)
		opps = append(opps, opp)
	}

	stats.Normalized = len(opps)
	n.logger.Info("source normalized",
		zap.String("source", source),
		zap.Int("received", stats.Received),
		zap.Int("normalized", stats.Normalized),
		zap.Int("incomplete", len(stats.Incomplete)),
		zap.Int("duplicates", stats.Duplicates),
	)

	return opps, stats, nil
}

func (n *Normalizer) normalizeOne(spec *SourceSpec, record map[string]any) (*Opportunity, *IncompleteListingWarning) {
	canonical := make(map[string]any, len(spec.Fields))
	for canon, key := range spec.Fields {
		if value, ok := record[key]; ok && value != nil {
			canonical[canon] = value
		}
	}

	for _, field := range spec.HTMLFields {
		if s, ok := canonical[field].(string); ok {
			canonical[field] = stripHTML(s)
		}
	}

	var raw rawListing
	if err := weakDecode(canonical, &raw); err != nil {
		n.logger.Debug("listing decode failed", zap.String("source", spec.Name), zap.Error(err))
		return nil, &IncompleteListingWarning{
			Source:   spec.Name,
			SourceID: stringValue(canonical[fieldSourceID]),
			Missing:  []string{"unreadable record"},
		}
	}

	raw.SourceID = strings.TrimSpace(raw.SourceID)
	raw.Title = strings.TrimSpace(raw.Title)
	raw.Requirements = strings.TrimSpace(raw.Requirements)

	var missing []string
	if raw.SourceID == "" {
		missing = append(missing, fieldSourceID)
	}
	if raw.Requirements == "" {
		missing = append(missing, fieldRequirements)
	}
	dueDate, err := parseDate(raw.DueDate, spec.DateLayouts)
	if err != nil {
		missing = append(missing, fieldDueDate)
	}
	if len(missing) > 0 {
		return nil, &IncompleteListingWarning{
			Source:   spec.Name,
			SourceID: raw.SourceID,
			Title:    raw.Title,
			Missing:  missing,
		}
	}

	// Posting date is only used for tie-breaking, so parse failures leave it
	// at the zero value instead of dropping the listing.
	postedDate, err := parseDate(raw.PostedDate, spec.DateLayouts)
	if err != nil {
		postedDate = time.Time{}
	}

	return &Opportunity{
		SourceID:     raw.SourceID,
		Source:       spec.Name,
		Title:        raw.Title,
		Agency:       strings.TrimSpace(raw.Agency),
		Requirements: raw.Requirements,
		NAICS:        normalizeNAICS(raw.NAICS),
		SetAside:     strings.TrimSpace(raw.SetAside),
		DueDate:      dueDate,
		PostedDate:   postedDate,
		URL:          strings.TrimSpace(raw.URL),
	}, nil
}

// Merge concatenates per-source batches into one collection sorted by due
// date.
func Merge(batches ...Opportunities) Opportunities {
	var merged Opportunities
	for _, batch := range batches {
		merged = append(merged, batch...)
	}
	merged.Sort()
	return merged
}

func weakDecode(input map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func parseDate(value string, layouts []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range append(append([]string{}, layouts...), defaultLayouts...) {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// normalizeNAICS flattens code values that arrive as comma-joined strings,
// trims them and drops duplicates preserving order.
func normalizeNAICS(values []string) []string {
	var codes []string
	seen := map[string]bool{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			code := strings.TrimSpace(part)
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

var htmlBreaks = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "</p>", " ", "</li>", " ")

// stripHTML reduces an HTML payload to whitespace-collapsed text. Plain
// strings pass through with the same whitespace cleanup.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return collapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBreaks.Replace(s)))
	if err != nil {
		return collapseWhitespace(s)
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
