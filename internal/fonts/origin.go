package fonts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/covergen/internal/domain"
)

// Origin fetches a remote resource by URL
type Origin interface {
	Fetch(ctx context.Context, rawURL string, w io.Writer) error
}

// HTTPOrigin is an Origin over net/http
type HTTPOrigin struct {
	client *http.Client
}

// NewHTTPOrigin returns an origin that talks to the network directly
func NewHTTPOrigin(timeout time.Duration) *HTTPOrigin {
	return &HTTPOrigin{client: &http.Client{Timeout: timeout}}
}

// NewProxyOrigin returns an origin that routes every request through proxy
func NewProxyOrigin(proxy string, timeout time.Duration) (*HTTPOrigin, error) {
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q", proxy)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(u)
	return &HTTPOrigin{client: &http.Client{Timeout: timeout, Transport: transport}}, nil
}

func (o *HTTPOrigin) Fetch(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: GET %s: HTTP %d", domain.ErrTransient, rawURL, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return nil
}

// strategy is one way of reaching the origin URL
type strategy struct {
	name   string
	url    string
	origin Origin
}

// strategies returns the ordered acquisition chain for rawURL:
// mirror rewrite, proxy, then direct.
func (r *Resolver) strategies(rawURL string) []strategy {
	var out []strategy
	if r.cfg.MirrorBase != "" && r.mirrorEligible(rawURL) {
		out = append(out, strategy{name: "mirror", url: MirrorURL(r.cfg.MirrorBase, rawURL), origin: r.direct})
	}
	if r.proxied != nil {
		out = append(out, strategy{name: "proxy", url: rawURL, origin: r.proxied})
	}
	out = append(out, strategy{name: "direct", url: rawURL, origin: r.direct})
	return out
}

func (r *Resolver) mirrorEligible(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.cfg.MirrorHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

// MirrorURL prefixes rawURL with the mirror base, the way GitHub
// acceleration proxies expect ("https://mirror/https://github.com/...").
func MirrorURL(base, rawURL string) string {
	return strings.TrimRight(base, "/") + "/" + rawURL
}
