package manifest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/pkg/utils"
)

// DefaultManifestPath is where web applications publish their manifest.
const DefaultManifestPath = "/agent.md"

// maxManifestBytes caps how much manifest text is read from a server.
const maxManifestBytes = 1 << 20

// Fetcher retrieves raw manifest text from an origin over HTTP.
type Fetcher struct {
	client *http.Client
	path   string
	logger *logrus.Logger
}

// NewFetcher creates a manifest fetcher. path defaults to /agent.md and
// timeout to 10s when zero values are given.
func NewFetcher(path string, timeout time.Duration, logger *logrus.Logger) *Fetcher {
	if path == "" {
		path = DefaultManifestPath
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		path:   path,
		logger: logger,
	}
}

// Fetch performs GET <origin>/agent.md and returns the manifest text. A
// network error or non-2xx status means "no manifest": ok is false and no
// error is surfaced, because an origin without a manifest simply has no
// tools.
func (f *Fetcher) Fetch(ctx context.Context, origin string) (string, bool) {
	url := utils.NormalizeOrigin(origin) + f.path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warnf("Invalid manifest URL %s: %v", url, err)
		return "", false
	}
	req.Header.Set("Accept", "text/markdown, text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debugf("Manifest fetch failed for %s: %v", origin, err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debugf("Manifest fetch for %s returned %d", origin, resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		f.logger.Debugf("Manifest read failed for %s: %v", origin, err)
		return "", false
	}

	text := string(body)
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	f.logger.Debugf("Fetched manifest from %s (%d bytes)", url, len(body))
	return text, true
}
