// Package artifacts accesses job output files through the per-tenant ISS
// file-serving gateway. Bundled workload-job logs arrive as zip archives
// and are unpacked in memory.
package artifacts

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each file-service call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response body is retained.
const maxErrorBody = 2048

// TokenSource supplies bearer tokens for the file gateway. iss.Client
// satisfies this; the token is cached per credentials lifetime, not
// re-fetched on every call.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
	RefreshBearerToken(ctx context.Context) (string, error)
}

// Config configures the file-service client.
type Config struct {
	// BaseURL is the default tenant gateway, used when TenantURLs has no
	// entry for the requested tenant.
	BaseURL string

	// TenantURLs maps tenant names to their gateway base URLs.
	TenantURLs map[string]string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" && len(c.TenantURLs) == 0 {
		return errors.New("artifacts: BaseURL or TenantURLs is required")
	}
	return nil
}

// Client talks to the per-tenant file gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenSource
	jobs       JobTypeLookup
	logger     *zap.Logger
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the transport, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a file-service client. jobs may be nil, in which case every
// job resolves to the default artifact type.
func New(cfg Config, tokens TokenSource, jobs JobTypeLookup, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, errors.New("artifacts: token source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		jobs:       jobs,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// baseURL resolves the gateway base URL for a tenant.
func (c *Client) baseURL(tenant string) string {
	if u, ok := c.cfg.TenantURLs[tenant]; ok {
		return strings.TrimRight(u, "/")
	}
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

// listingPath builds the file-service path for a listing request.
func listingPath(jobID string, artifactType Type, path string) string {
	if artifactType.bundled() {
		return fmt.Sprintf("fs/files/%s/logs", jobID)
	}
	p := fmt.Sprintf("fs/files/%s/%s/artifacts/out", jobID, artifactType)
	if path != "" {
		p += "/" + strings.Trim(path, "/")
	}
	return p
}

// get issues one authenticated GET. On 401 the bearer token is refreshed
// (forcing a credential re-fetch) and the call retried exactly once; a
// second 401 surfaces as ErrAuthentication.
func (c *Client) get(ctx context.Context, op, tenant, path string) ([]byte, error) {
	body, status, err := c.getOnce(ctx, op, tenant, path, false)
	if status == http.StatusUnauthorized {
		c.logger.Warn("file service rejected token, refreshing", zap.String("op", op))
		body, status, err = c.getOnce(ctx, op, tenant, path, true)
		if status == http.StatusUnauthorized {
			return nil, &ServiceError{Op: op, Path: path, Status: status, Err: ErrAuthentication}
		}
	}
	return body, err
}

func (c *Client) getOnce(ctx context.Context, op, tenant, path string, refresh bool) ([]byte, int, error) {
	var (
		token string
		err   error
	)
	if refresh {
		token, err = c.tokens.RefreshBearerToken(ctx)
	} else {
		token, err = c.tokens.BearerToken(ctx)
	}
	if err != nil {
		return nil, 0, err
	}

	u := c.baseURL(tenant) + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, &ServiceError{Op: op, Path: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &ServiceError{Op: op, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, &ServiceError{Op: op, Path: path, Status: resp.StatusCode, Err: errors.New("unauthorized")}
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, &ServiceError{Op: op, Path: path, Status: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, &ServiceError{Op: op, Path: path, Status: resp.StatusCode, Err: ErrAccessDenied}
	case resp.StatusCode >= 400:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, &ServiceError{
			Op:     op,
			Path:   path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errBody),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &ServiceError{Op: op, Path: path, Err: err}
	}
	return body, resp.StatusCode, nil
}

// wireFileList accepts both shapes the gateway emits: plain filename
// strings and objects with a name field. Bundled listings use "children"
// instead of "files".
type wireFileList struct {
	Files    []json.RawMessage `json:"files"`
	Children []json.RawMessage `json:"children"`
}

func decodeFileNames(entries []json.RawMessage) []string {
	names := make([]string, 0, len(entries))
	for _, raw := range entries {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				names = append(names, s)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names
}

// ListFiles lists a job's output files under path.
func (c *Client) ListFiles(ctx context.Context, tenant, jobID, path string) ([]string, error) {
	return c.ListFilesMatching(ctx, tenant, jobID, path, "")
}

// ListFilesMatching lists a job's output files, keeping only names that
// match the glob pattern when one is given.
func (c *Client) ListFilesMatching(ctx context.Context, tenant, jobID, path, pattern string) ([]string, error) {
	artifactType, jobTenant := c.resolveJob(ctx, jobID)
	if tenant == "" {
		tenant = jobTenant
	}

	body, err := c.get(ctx, "ListFiles", tenant, listingPath(jobID, artifactType, path))
	if err != nil {
		return nil, err
	}

	var wire wireFileList
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ServiceError{Op: "ListFiles", Err: fmt.Errorf("invalid listing response: %w", err)}
	}

	entries := wire.Files
	if artifactType.bundled() {
		entries = wire.Children
	}
	files := decodeFileNames(entries)

	if pattern != "" {
		matched := files[:0]
		for _, name := range files {
			ok, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, &ServiceError{Op: "ListFiles", Err: fmt.Errorf("invalid pattern %q: %w", pattern, err)}
			}
			if ok {
				matched = append(matched, name)
			}
		}
		files = matched
	}

	c.logger.Info("listed job files",
		zap.String("job_id", jobID),
		zap.String("tenant", tenant),
		zap.Int("files", len(files)))
	return files, nil
}

// DownloadFile fetches one file's bytes. For bundled workload-job logs the
// addressed resource is a zip archive; the single entry matching filePath
// is extracted in memory and returned.
func (c *Client) DownloadFile(ctx context.Context, tenant, jobID, filePath string) ([]byte, error) {
	artifactType, jobTenant := c.resolveJob(ctx, jobID)
	if tenant == "" {
		tenant = jobTenant
	}
	cleanPath := strings.Trim(filePath, "/")

	if artifactType.bundled() {
		return c.downloadBundled(ctx, tenant, jobID, cleanPath)
	}

	path := fmt.Sprintf("fs/files/%s/%s/artifacts/out/%s", jobID, artifactType, cleanPath)
	content, err := c.get(ctx, "DownloadFile", tenant, path)
	if err != nil {
		return nil, err
	}

	c.logger.Info("downloaded file",
		zap.String("job_id", jobID),
		zap.String("path", cleanPath),
		zap.Int("bytes", len(content)))
	return content, nil
}

// downloadBundled fetches the zip archive holding a workload job's logs and
// extracts the requested entry.
func (c *Client) downloadBundled(ctx context.Context, tenant, jobID, filePath string) ([]byte, error) {
	var group string
	switch {
	case strings.Contains(filePath, "simics"):
		group = "simics"
	case strings.Contains(filePath, "serialconsole"):
		group = "serialconsole"
	default:
		return nil, &ServiceError{
			Op:   "DownloadFile",
			Path: filePath,
			Err:  fmt.Errorf("%w: path %q does not address a bundled log group", ErrNotFound, filePath),
		}
	}

	archive, err := c.get(ctx, "DownloadFile", tenant, fmt.Sprintf("fs/files/%s/logs/all/%s", jobID, group))
	if err != nil {
		return nil, err
	}

	content, err := extractZipEntry(archive, filePath)
	if err != nil {
		return nil, &ServiceError{Op: "DownloadFile", Path: filePath, Err: err}
	}

	c.logger.Info("extracted bundled log",
		zap.String("job_id", jobID),
		zap.String("path", filePath),
		zap.Int("bytes", len(content)))
	return content, nil
}

// extractZipEntry opens data as a zip archive and returns the bytes of the
// single entry whose name contains or ends with relPath.
func extractZipEntry(data []byte, relPath string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	var target *zip.File
	for _, f := range zr.File {
		if strings.Contains(f.Name, relPath) || strings.HasSuffix(f.Name, relPath) {
			target = f
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %q not present in archive", ErrNotFound, relPath)
	}

	rc, err := target.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
