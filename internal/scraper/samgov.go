package scraper

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const samGovBaseURL = "https://api.sam.gov/opportunities/v2/search"

// SamGovOptions configures the SAM.gov source.
type SamGovOptions struct {
	APIKey   string
	BaseURL  string
	Lookback time.Duration
	Limit    int
	PageSize int
}

// SamGov fetches contract opportunities posted within the lookback window
// from the SAM.gov opportunities API.
type SamGov struct {
	client   *Client
	apiKey   string
	baseURL  string
	lookback time.Duration
	limit    int
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

func NewSamGov(client *Client, opts SamGovOptions, logger *zap.Logger) *SamGov {
	if opts.BaseURL == "" {
		opts.BaseURL = samGovBaseURL
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 7 * 24 * time.Hour
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SamGov{
		client:   client,
		apiKey:   opts.APIKey,
		baseURL:  opts.BaseURL,
		lookback: opts.Lookback,
		limit:    opts.Limit,
		pageSize: opts.PageSize,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SamGov) Name() string { return "sam.gov" }

type samGovResponse struct {
	TotalRecords      int              `json:"totalRecords"`
	OpportunitiesData []map[string]any `json:"opportunitiesData"`
}

// Fetch pages through the posted-date window and resolves each listing's
// description link to the actual text.
func (s *SamGov) Fetch(ctx context.Context) ([]map[string]any, error) {
	if s.apiKey == "" {
		return nil, &SourceUnavailableError{Source: s.Name(), Err: errors.New("api key is not set")}
	}

	now := s.now()
	var records []map[string]any

	for offset := 0; ; {
		page, total, err := s.fetchPage(ctx, now, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &SourceUnavailableError{Source: s.Name(), Err: err}
		}

		records = append(records, page...)
		offset += len(page)

		if len(page) == 0 || offset >= total {
			break
		}
		if s.limit > 0 && len(records) >= s.limit {
			break
		}
	}

	if s.limit > 0 && len(records) > s.limit {
		records = records[:s.limit]
	}

	if err := s.enrichDescriptions(ctx, records); err != nil {
		return nil, err
	}

	s.logger.Info("listings fetched",
		zap.String("source", s.Name()),
		zap.Int("count", len(records)),
		zap.String("posted_from", now.Add(-s.lookback).Format("01/02/2006")),
	)

	return records, nil
}

func (s *SamGov) fetchPage(ctx context.Context, now time.Time, offset int) ([]map[string]any, int, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("postedFrom", now.Add(-s.lookback).Format("01/02/2006"))
	params.Set("postedTo", now.Format("01/02/2006"))
	params.Set("limit", strconv.Itoa(s.pageSize))
	params.Set("offset", strconv.Itoa(offset))

	var resp samGovResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, 0, err
	}
	return resp.OpportunitiesData, resp.TotalRecords, nil
}

// enrichDescriptions replaces description links with the linked text. SAM.gov
// returns the description field as a URL to a separate endpoint. Listings
// whose text cannot be fetched lose the field and are dropped downstream as
// incomplete instead of carrying a bare link as their requirements.
func (s *SamGov) enrichDescriptions(ctx context.Context, records []map[string]any) error {
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		link, ok := record["description"].(string)
		if !ok || !strings.HasPrefix(link, "http") {
			continue
		}

		var detail struct {
			Description string `json:"description"`
		}
		err := s.client.GetJSON(ctx, withAPIKey(link, s.apiKey), &detail)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || strings.TrimSpace(detail.Description) == "" {
			s.logger.Warn("description fetch failed",
				zap.String("source", s.Name()),
				zap.Any("notice_id", record["noticeId"]),
				zap.Error(err),
			)
			delete(record, "description")
			continue
		}
		record["description"] = detail.Description
	}
	return nil
}

func withAPIKey(link, key string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("api_key", key)
	u.RawQuery = q.Encode()
	return u.String()
}
