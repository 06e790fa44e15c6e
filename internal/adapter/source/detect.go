package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/covergen/internal/adapter"
)

const detectTimeout = 10 * time.Second

// systemInfo represents the /System/Info/Public response
type systemInfo struct {
	ProductName string `json:"ProductName"`
	ServerName  string `json:"ServerName"`
	Version     string `json:"Version"`
	ID          string `json:"Id"`
}

// ServerInfo describes a detected server
type ServerInfo struct {
	Type    adapter.SourceType
	Name    string
	Version string
}

// DetectServerType probes a server URL to determine if it's Emby or Jellyfin.
// Both expose the unauthenticated /System/Info/Public endpoint; Emby also
// serves it under /emby.
func DetectServerType(ctx context.Context, serverURL string) (ServerInfo, error) {
	// Normalize URL (remove trailing slash)
	serverURL = strings.TrimRight(serverURL, "/")

	client := &http.Client{
		Timeout: detectTimeout,
	}

	var errs []string
	for _, path := range []string{"/System/Info/Public", "/emby/System/Info/Public"} {
		info, err := probe(ctx, client, serverURL+path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		product := strings.ToLower(info.ProductName)
		switch {
		case strings.Contains(product, "jellyfin"):
			return ServerInfo{Type: adapter.SourceTypeJellyfin, Name: info.ServerName, Version: info.Version}, nil
		case strings.Contains(product, "emby"), strings.HasPrefix(path, "/emby"):
			return ServerInfo{Type: adapter.SourceTypeEmby, Name: info.ServerName, Version: info.Version}, nil
		default:
			errs = append(errs, fmt.Sprintf("%s: unrecognized product %q", path, info.ProductName))
		}
	}

	return ServerInfo{}, fmt.Errorf("could not detect server type: %s", strings.Join(errs, "; "))
}

// probe fetches and decodes one system info endpoint
func probe(ctx context.Context, client *http.Client, url string) (systemInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return systemInfo{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return systemInfo{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return systemInfo{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return systemInfo{}, fmt.Errorf("failed to read response: %w", err)
	}

	var info systemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return systemInfo{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return info, nil
}
