package jellyfin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/retry"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Flavor distinguishes the two API dialects this client speaks
type Flavor string

const (
	FlavorEmby     Flavor = "emby"
	FlavorJellyfin Flavor = "jellyfin"
)

// Client implements domain.MediaCatalog and domain.ArtifactSink for Emby
// and Jellyfin servers
type Client struct {
	name       string
	flavor     Flavor
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
	policy     retry.Policy
}

// NewClient creates a new API client. name identifies the server in
// history and exclusion keys.
func NewClient(name string, flavor Flavor, baseURL, apiKey, userID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:    name,
		flavor:  flavor,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger.With("server", name),
		policy: retry.Exponential(maxRetries+1, baseRetryDelay),
	}
}

// Name returns the configured server name
func (c *Client) Name() string {
	return c.name
}

// prefix returns the path prefix of the dialect. Emby serves its API under /emby.
func (c *Client) prefix() string {
	if c.flavor == FlavorEmby {
		return "/emby"
	}
	return ""
}

// statusError is a non-success response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// doRequest performs an authenticated HTTP request.
// 5xx responses are retried with exponential backoff; transport failures are not.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	reqURL := c.baseURL + c.prefix() + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var result []byte
	err := retry.Do(ctx, c.policy, func(attempt int) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Token", c.apiKey)
		req.Header.Set("X-Emby-Authorization", buildAuthHeader(c.apiKey))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		c.logger.Debug("media server request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("media server request failed", "error", err)
			return retry.Permanent(fmt.Errorf("%w: %v", domain.ErrServerOffline, err))
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to read response: %w", err))
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return retry.Permanent(domain.ErrAuthFailed)
		}

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			c.logger.Warn("media server error, will retry",
				"status", resp.StatusCode,
				"body", string(respBody),
				"attempt", attempt,
				"path", path,
			)
			return &statusError{code: resp.StatusCode, body: string(respBody)}
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			c.logger.Error("media server request error", "status", resp.StatusCode, "body", string(respBody))
			return retry.Permanent(&statusError{code: resp.StatusCode, body: string(respBody)})
		}

		result = respBody
		return nil
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code >= 500 {
			c.logger.Error("media server request failed after retries", "error", err, "path", path)
		}
		return nil, err
	}
	return result, nil
}

// ListCollections returns the server's libraries
func (c *Client) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	path := "/Library/VirtualFolders"
	if c.flavor == FlavorEmby {
		path = "/Library/VirtualFolders/Query"
	}
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return nil, err
	}

	var folders []VirtualFolder
	if c.flavor == FlavorEmby {
		var resp VirtualFoldersResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		folders = resp.Items
	} else if err := json.Unmarshal(body, &folders); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return MapCollections(folders, c.flavor), nil
}

// ListItems returns one page of items below q.ParentID, newest first by q.SortBy
func (c *Client) ListItems(ctx context.Context, q domain.ItemQuery) ([]domain.CatalogItem, error) {
	query := url.Values{}
	query.Set("ParentId", q.ParentID)
	if q.SortBy != "" {
		query.Set("SortBy", q.SortBy)
	}
	if len(q.IncludeTypes) > 0 {
		types := make([]string, len(q.IncludeTypes))
		for i, t := range q.IncludeTypes {
			types[i] = string(t)
		}
		query.Set("IncludeItemTypes", strings.Join(types, ","))
	}
	query.Set("StartIndex", strconv.Itoa(q.Offset))
	if q.Limit > 0 {
		query.Set("Limit", strconv.Itoa(q.Limit))
	}
	query.Set("Recursive", "true")
	query.Set("SortOrder", "Descending")

	path := "/Items"
	if c.userID != "" {
		path = fmt.Sprintf("/Users/%s/Items", c.userID)
	}
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return nil, err
	}

	var resp ItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return MapItems(resp.Items), nil
}

// FetchImage downloads the image a locator points at
func (c *Client) FetchImage(ctx context.Context, loc domain.ImageLocator) ([]byte, error) {
	path := fmt.Sprintf("/Items/%s/Images/%s", url.PathEscape(loc.OwnerID), imagePath(loc.Kind))
	query := url.Values{}
	if loc.Tag != "" {
		query.Set("tag", loc.Tag)
	}
	data, err := c.doRequest(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", loc, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch image %s: empty response", loc)
	}
	return data, nil
}

// SetCollectionImage uploads art as the collection's primary image. The API
// expects the image base64 encoded in the request body.
func (c *Client) SetCollectionImage(ctx context.Context, collectionID string, art domain.CoverArtifact) error {
	path := fmt.Sprintf("/Items/%s/Images/Primary", url.PathEscape(collectionID))
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(art.Data)))
	base64.StdEncoding.Encode(encoded, art.Data)

	if _, err := c.doRequest(ctx, http.MethodPost, path, nil, encoded, art.Format.ContentType()); err != nil {
		return fmt.Errorf("upload cover for %s: %w", collectionID, err)
	}
	return nil
}

// buildAuthHeader constructs the X-Emby-Authorization header
func buildAuthHeader(token string) string {
	parts := []string{
		`MediaBrowser Client="Covergen"`,
		`Device="CLI"`,
		`DeviceId="covergen-cli"`,
		`Version="1.0.0"`,
	}

	if token != "" {
		parts = append(parts, fmt.Sprintf(`Token="%s"`, token))
	}

	return strings.Join(parts, ", ")
}
