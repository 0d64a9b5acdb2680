package corpus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
)

// Ensure HTTPSource implements the interface.
var _ driven.CorpusSource = (*HTTPSource)(nil)

// DefaultFetchTimeout bounds a single corpus download.
const DefaultFetchTimeout = 30 * time.Second

// maxCorpusBytes caps the corpus download size (64 MiB).
const maxCorpusBytes = 64 << 20

// HTTPSource fetches the corpus from a deployed site's static resource.
type HTTPSource struct {
	client *http.Client
	url    string
}

// NewHTTPSource creates a corpus source for the given URL.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{Timeout: DefaultFetchTimeout},
		url:    url,
	}
}

// Fetch downloads and decodes the corpus resource.
func (s *HTTPSource) Fetch(ctx context.Context) ([]domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domain.ErrCorpusFetchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrCorpusFetchFailed, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: status %d", domain.ErrCorpusFetchFailed, s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCorpusBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrCorpusFetchFailed, err)
	}

	return decodeCorpus(data)
}

// Location returns the corpus URL.
func (s *HTTPSource) Location() string {
	return s.url
}
