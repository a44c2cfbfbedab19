package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trial-match-server/internal/domain"
)

// Registry defaults
const (
	DefaultRegistryBaseURL   = "https://clinicaltrials.gov/api/v2"
	DefaultRegistryUserAgent = "ClinicalTrialsMatchingApp/1.0 (Educational/Research Purpose)"
	DefaultRegistryTimeout   = 30 * time.Second
	DefaultRegistryRateLimit = 5
)

// maxResponseBytes bounds how much of a registry response is read
const maxResponseBytes = 32 << 20

// ClinicalTrialsClient handles raw interactions with the ClinicalTrials.gov v2 API
type ClinicalTrialsClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// studiesResponse is the envelope returned by GET /studies
type studiesResponse struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

// NewClinicalTrialsClient creates a new ClinicalTrials.gov API client
func NewClinicalTrialsClient(config domain.RegistryConfig) *ClinicalTrialsClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultRegistryBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRegistryTimeout
	}
	if config.RateLimit == 0 {
		config.RateLimit = DefaultRegistryRateLimit
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultRegistryUserAgent
	}

	return &ClinicalTrialsClient{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// SearchStudies issues one search request and returns the raw study records
func (c *ClinicalTrialsClient) SearchStudies(ctx context.Context, query domain.TrialQuery) ([]json.RawMessage, error) {
	params := url.Values{
		"format": {"json"},
	}
	if query.MaxResults > 0 {
		params.Set("pageSize", strconv.Itoa(query.MaxResults))
	}
	if query.Condition != "" {
		params.Set("query.cond", query.Condition)
	}
	if query.Keywords != "" {
		params.Set("query.term", query.Keywords)
	}
	if query.RecruitingOnly {
		params.Set("filter.overallStatus", "RECRUITING")
	}

	body, status, err := c.get(ctx, c.baseURL+"/studies", params)
	if err != nil {
		return nil, domain.NewRegistryFetchError("search studies", 0, err)
	}
	if status != http.StatusOK {
		return nil, domain.NewRegistryFetchError("search studies", status, nil)
	}

	var resp studiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewRegistryFetchError("search studies", status, fmt.Errorf("failed to parse response: %w", err))
	}

	if resp.Studies == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Studies, nil
}

// GetStudy fetches a single study. found is false when the registry reports 404.
// Both a bare study object and a {"studies":[...]} wrapper are accepted.
func (c *ClinicalTrialsClient) GetStudy(ctx context.Context, nctID string) (json.RawMessage, bool, error) {
	endpoint := c.baseURL + "/studies/" + url.PathEscape(nctID)

	body, status, err := c.get(ctx, endpoint, url.Values{"format": {"json"}})
	if err != nil {
		return nil, false, domain.NewRegistryFetchError("get study "+nctID, 0, err)
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, domain.NewRegistryFetchError("get study "+nctID, status, nil)
	}

	var wrapper struct {
		Studies []json.RawMessage `json:"studies"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, false, domain.NewRegistryFetchError("get study "+nctID, status, fmt.Errorf("failed to parse response: %w", err))
	}
	if wrapper.Studies != nil {
		if len(wrapper.Studies) == 0 {
			return nil, false, nil
		}
		return wrapper.Studies[0], true, nil
	}

	return json.RawMessage(body), true, nil
}

// get performs a rate-limited GET and returns the body and status code
func (c *ClinicalTrialsClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, int, error) {
	// Rate limiting
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait failed: %w", err)
	}

	fullURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
