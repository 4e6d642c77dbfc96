package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	grantsGovSearchURL = "https://api.grants.gov/v1/api/search2"
	grantsGovFetchURL  = "https://api.grants.gov/v1/api/fetchOpportunity"
	grantsGovDetailURL = "https://www.grants.gov/search-results-detail/%s"
)

// GrantsGovOptions configures the grants.gov source.
type GrantsGovOptions struct {
	SearchURL string
	FetchURL  string
	// Keyword narrows the search. Empty fetches all posted opportunities,
	// bounded by Limit.
	Keyword  string
	Limit    int
	PageSize int
}

// GrantsGov fetches posted grant opportunities from the grants.gov search
// API. Search hits carry no synopsis text, so each hit is enriched with the
// synopsis from the detail endpoint before handing it to the normalizer.
type GrantsGov struct {
	client    *Client
	searchURL string
	fetchURL  string
	keyword   string
	limit     int
	pageSize  int
	logger    *zap.Logger
}

func NewGrantsGov(client *Client, opts GrantsGovOptions, logger *zap.Logger) *GrantsGov {
	if opts.SearchURL == "" {
		opts.SearchURL = grantsGovSearchURL
	}
	if opts.FetchURL == "" {
		opts.FetchURL = grantsGovFetchURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrantsGov{
		client:    client,
		searchURL: opts.SearchURL,
		fetchURL:  opts.FetchURL,
		keyword:   opts.Keyword,
		limit:     opts.Limit,
		pageSize:  opts.PageSize,
		logger:    logger,
	}
}

func (g *GrantsGov) Name() string { return "grants.gov" }

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovSearchResponse struct {
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
	Data      struct {
		HitCount    int              `json:"hitCount"`
		StartRecord int              `json:"startRecord"`
		OppHits     []map[string]any `json:"oppHits"`
	} `json:"data"`
}

func (g *GrantsGov) Fetch(ctx context.Context) ([]map[string]any, error) {
	var hits []map[string]any

	for start := 0; ; {
		req := grantsGovSearchRequest{
			Keyword:        g.keyword,
			OppStatuses:    "posted",
			SortBy:         "openDate|desc",
			Rows:           g.pageSize,
			StartRecordNum: start,
		}

		var resp grantsGovSearchResponse
		if err := g.client.PostJSON(ctx, g.searchURL, req, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &SourceUnavailableError{Source: g.Name(), Err: err}
		}
		if resp.ErrorCode != 0 {
			return nil, &SourceUnavailableError{Source: g.Name(), Err: fmt.Errorf("api error %d: %s", resp.ErrorCode, resp.Msg)}
		}

		hits = append(hits, resp.Data.OppHits...)
		start += len(resp.Data.OppHits)

		if len(resp.Data.OppHits) == 0 || start >= resp.Data.HitCount {
			break
		}
		if g.limit > 0 && len(hits) >= g.limit {
			break
		}
	}

	if g.limit > 0 && len(hits) > g.limit {
		hits = hits[:g.limit]
	}

	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.enrich(ctx, hit)
	}

	g.logger.Info("listings fetched",
		zap.String("source", g.Name()),
		zap.Int("count", len(hits)),
		zap.String("keyword", g.keyword),
	)

	return hits, nil
}

// enrich injects the synopsis text and a detail URL into a search hit. Hits
// whose synopsis cannot be fetched stay without one and are dropped
// downstream as incomplete.
func (g *GrantsGov) enrich(ctx context.Context, hit map[string]any) {
	id := stringField(hit, "id")
	if id == "" {
		return
	}

	hit["url"] = fmt.Sprintf(grantsGovDetailURL, id)

	var detail struct {
		Synopsis map[string]any `json:"synopsis"`
		Data     struct {
			Synopsis map[string]any `json:"synopsis"`
		} `json:"data"`
	}
	if err := g.client.PostJSON(ctx, g.fetchURL, map[string]string{"id": id}, &detail); err != nil {
		g.logger.Warn("synopsis fetch failed",
			zap.String("source", g.Name()),
			zap.String("id", id),
			zap.Error(err),
		)
		return
	}

	synopsis := detail.Data.Synopsis
	if synopsis == nil {
		synopsis = detail.Synopsis
	}
	if desc, ok := synopsis["synopsisDesc"].(string); ok && strings.TrimSpace(desc) != "" {
		hit["synopsisDesc"] = desc
	}
}

func stringField(record map[string]any, key string) string {
	switch v := record[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
