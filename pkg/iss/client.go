// Package iss implements the typed client for the ISS job/platform API.
//
// The client owns request construction (internal field names mapped to the
// remote query-parameter table), authentication (OAuth2 client-credentials
// or HTTP Basic), the one-shot 401 refresh-and-retry policy, and best-effort
// normalization of listing responses into typed records.
package iss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/secrets"
)

const (
	// DefaultTimeout bounds each outbound API call.
	DefaultTimeout = 30 * time.Second

	// tokenExchangeTimeout bounds the OAuth2 token exchange. Deliberately
	// shorter than the API timeout; a slow token endpoint should fail fast.
	tokenExchangeTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response body is retained.
	maxErrorBody = 2048

	userAgent = "issgate/1.0"
)

// CredentialSource supplies service credentials, optionally bypassing any
// cache. secrets.Provider satisfies this.
type CredentialSource interface {
	GetCredentials(ctx context.Context, forceRefresh bool) (secrets.Credentials, error)
}

// Observer receives one callback per completed outbound call. Used to wire
// request metrics without coupling this package to a metrics registry.
type Observer interface {
	ObserveOutbound(op string, status int, elapsed time.Duration)
}

// TokenRefreshObserver is optionally implemented by an Observer that also
// wants to count OAuth2 token exchanges.
type TokenRefreshObserver interface {
	RecordTokenRefresh()
}

// Config configures the ISS client.
type Config struct {
	// BaseURL is the API root, e.g. "https://iss.example.com". The client
	// appends "/v1/<endpoint>".
	BaseURL string

	// TokenURL is the OAuth2 token endpoint for the client-credentials grant.
	// Required only when the credentials carry a client id/secret pair.
	TokenURL string

	// Timeout bounds each API call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("iss: BaseURL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("iss: invalid BaseURL: %w", err)
	}
	return nil
}

// Client is the ISS API client. It is safe for concurrent use; the only
// mutable state is the cached bearer token, guarded by a mutex.
type Client struct {
	baseURL  string
	tokenURL string

	httpClient  *http.Client
	tokenClient *http.Client

	creds    CredentialSource
	logger   *zap.Logger
	observer Observer

	mu    sync.Mutex
	token string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the transport, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver wires an outbound-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates an ISS client.
func New(cfg Config, creds CredentialSource, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, errors.New("iss: credential source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:    cfg.TokenURL,
		httpClient:  &http.Client{Timeout: timeout},
		tokenClient: &http.Client{Timeout: tokenExchangeTimeout},
		creds:       creds,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BearerToken returns the bearer token for the current credentials,
// performing the OAuth2 exchange if none is cached. Callers that talk to
// other ISS-adjacent services (the file gateway) reuse it.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	creds, err := c.creds.GetCredentials(ctx, false)
	if err != nil {
		return "", err
	}
	if !creds.HasClientCredentials() {
		return "", fmt.Errorf("%w: bearer token requires client credentials", ErrConfiguration)
	}
	return c.bearerToken(ctx, creds, false)
}

// RefreshBearerToken forces a credential refresh and a fresh token
// exchange. Callers use it after a downstream service rejects the cached
// token.
func (c *Client) RefreshBearerToken(ctx context.Context) (string, error) {
	creds, err := c.creds.GetCredentials(ctx, true)
	if err != nil {
		return "", err
	}
	if !creds.HasClientCredentials() {
		return "", fmt.Errorf("%w: bearer token requires client credentials", ErrConfiguration)
	}
	return c.bearerToken(ctx, creds, true)
}

// bearerToken returns the cached token or performs a fresh exchange.
func (c *Client) bearerToken(ctx context.Context, creds secrets.Credentials, force bool) (string, error) {
	c.mu.Lock()
	if !force && c.token != "" {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	token, err := c.exchangeToken(ctx, creds)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// exchangeToken performs the OAuth2 client-credentials grant: HTTP Basic
// auth with the client id/secret and a form-encoded body.
func (c *Client) exchangeToken(ctx context.Context, creds secrets.Credentials) (string, error) {
	if c.tokenURL == "" {
		return "", fmt.Errorf("%w: token endpoint not configured", ErrConfiguration)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "")

	ctx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ClientError{Op: "TokenExchange", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)

	resp, err := c.tokenClient.Do(req)
	if err != nil {
		return "", wrapTransportError("TokenExchange", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ClientError{Op: "TokenExchange", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OAuth2 token request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", c.tokenURL))
		return "", &ClientError{
			Op:     "TokenExchange",
			Status: resp.StatusCode,
			Body:   truncate(string(body), maxErrorBody),
			Err:    ErrAuthentication,
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &ClientError{Op: "TokenExchange", Err: fmt.Errorf("invalid token response: %w", err)}
	}
	if tokenResp.AccessToken == "" {
		return "", &ClientError{Op: "TokenExchange", Err: errors.New("no access_token in token response")}
	}

	if tr, ok := c.observer.(TokenRefreshObserver); ok {
		tr.RecordTokenRefresh()
	}
	c.logger.Debug("obtained OAuth2 access token", zap.String("endpoint", c.tokenURL))
	return tokenResp.AccessToken, nil
}

// invalidateToken drops the cached bearer token so the next call exchanges
// a fresh one.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) buildURL(endpoint string, params url.Values) string {
	u := c.baseURL + "/v1/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do issues one authenticated GET against the API. On a 401 it forces a
// credential refresh (and token re-exchange) and retries exactly once; a
// second 401 surfaces as ErrAuthentication. No other status is retried.
func (c *Client) do(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	body, err := c.doOnce(ctx, op, endpoint, params, false)
	if err == nil {
		return body, nil
	}

	var ce *ClientError
	if errors.As(err, &ce) && ce.Status == http.StatusUnauthorized {
		c.logger.Warn("authentication failed, refreshing credentials", zap.String("op", op))
		return c.doOnce(ctx, op, endpoint, params, true)
	}
	return nil, err
}

func (c *Client) doOnce(ctx context.Context, op, endpoint string, params url.Values, refreshed bool) ([]byte, error) {
	creds, err := c.creds.GetCredentials(ctx, refreshed)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(endpoint, params), nil)
	if err != nil {
		return nil, &ClientError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	// Exactly one auth path per request: bearer token when client
	// credentials are present, HTTP Basic otherwise.
	switch {
	case creds.HasClientCredentials():
		token, err := c.bearerToken(ctx, creds, refreshed)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case creds.HasBasicAuth():
		req.SetBasicAuth(creds.Username, creds.Password)
	default:
		return nil, &ClientError{Op: op, Err: ErrConfiguration}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		return nil, wrapTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(op, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.invalidateToken()
		if refreshed {
			return nil, &ClientError{Op: op, Status: resp.StatusCode, Err: ErrAuthentication}
		}
		return nil, &ClientError{Op: op, Status: resp.StatusCode, Err: errors.New("unauthorized")}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ClientError{Op: op, Status: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ClientError{Op: op, Status: resp.StatusCode, Err: ErrRateLimited}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ClientError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   string(body),
			Err:    fmt.Errorf("request failed with status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{Op: op, Err: err}
	}
	return body, nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveOutbound(op, status, elapsed)
	}
}

// ListJobs fetches one page of jobs. Malformed records inside the listing
// are logged and skipped; the returned count is the number of well-formed
// records, not the raw server-reported count.
func (c *Client) ListJobs(ctx context.Context, filters JobFilters) (*JobPage, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, "ListJobs", "jobs", filters.queryParams())
	if err != nil {
		return nil, err
	}

	var wire wireJobsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "ListJobs", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	jobs := make([]JobSummary, 0, len(wire.Jobs))
	for _, raw := range wire.Jobs {
		job, err := jobSummaryFromWire(raw)
		if err != nil {
			// Best-effort listing: one tenant's bad record must not block
			// visibility into the rest of the fleet.
			c.logger.Warn("skipping malformed job record",
				zap.String("job_id", raw.JobRequestID),
				zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}

	c.logger.Debug("listed jobs", zap.Int("returned", len(jobs)), zap.Int("raw", len(wire.Jobs)))
	return &JobPage{
		Jobs:              jobs,
		Count:             len(jobs),
		ContinuationToken: wire.ContinuationToken,
	}, nil
}

// GetJob fetches the full detail for one job. A parse failure here is fatal
// to the call and surfaces as a validation error.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobDetail, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrValidation)
	}

	body, err := c.do(ctx, "GetJob", "jobs/job/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var wire wireJobDetail
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "GetJob", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	detail, err := jobDetailFromWire(wire)
	if err != nil {
		return nil, &ClientError{Op: "GetJob", Err: err}
	}
	return detail, nil
}

// ListPlatforms fetches platforms, skipping malformed records.
func (c *Client) ListPlatforms(ctx context.Context, filters PlatformFilters) ([]Platform, error) {
	body, err := c.do(ctx, "ListPlatforms", "platforms", filters.queryParams())
	if err != nil {
		return nil, err
	}

	var wire wirePlatformsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "ListPlatforms", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	platforms := make([]Platform, 0, len(wire.Platforms))
	for _, raw := range wire.Platforms {
		p, err := platformFromWire(raw)
		if err != nil {
			c.logger.Warn("skipping malformed platform record",
				zap.String("platform_id", raw.PlatformID),
				zap.Error(err))
			continue
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

// GetPlatform fetches one platform by id.
func (c *Client) GetPlatform(ctx context.Context, platformID string) (*Platform, error) {
	if platformID == "" {
		return nil, fmt.Errorf("%w: platform id is required", ErrValidation)
	}

	body, err := c.do(ctx, "GetPlatform", "platforms/platform/"+url.PathEscape(platformID), nil)
	if err != nil {
		return nil, err
	}

	var wire wirePlatform
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "GetPlatform", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	p, err := platformFromWire(wire)
	if err != nil {
		return nil, &ClientError{Op: "GetPlatform", Err: err}
	}
	return &p, nil
}

// ListInstances fetches instances, skipping malformed records.
func (c *Client) ListInstances(ctx context.Context, filters InstanceFilters) ([]Instance, error) {
	body, err := c.do(ctx, "ListInstances", "instances", filters.queryParams())
	if err != nil {
		return nil, err
	}

	var wire wireInstancesResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "ListInstances", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	instances := make([]Instance, 0, len(wire.Instances))
	for _, raw := range wire.Instances {
		inst, err := instanceFromWire(raw)
		if err != nil {
			c.logger.Warn("skipping malformed instance record",
				zap.String("instance_id", raw.InstanceID),
				zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// GetInstance fetches one instance by id.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*Instance, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("%w: instance id is required", ErrValidation)
	}

	body, err := c.do(ctx, "GetInstance", "instances/"+url.PathEscape(instanceID), nil)
	if err != nil {
		return nil, err
	}

	var wire wireInstance
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ClientError{Op: "GetInstance", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	inst, err := instanceFromWire(wire)
	if err != nil {
		return nil, &ClientError{Op: "GetInstance", Err: err}
	}
	return &inst, nil
}

// CheckHealth satisfies the server's health checker contract by probing the
// platforms listing with the smallest possible page.
func (c *Client) CheckHealth(ctx context.Context) error {
	_, err := c.ListPlatforms(ctx, PlatformFilters{Limit: 1})
	return err
}

// wrapTransportError classifies network-level failures. Timeouts get their
// own sentinel; nothing at this layer is retried.
func wrapTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return &ClientError{Op: op, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
