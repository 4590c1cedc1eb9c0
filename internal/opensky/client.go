package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/flight-tracker/pkg/logger"
)

// DefaultStatesURL is the public all-states endpoint
const DefaultStatesURL = "https://opensky-network.org/api/states/all"

// DefaultTimeout bounds a single request when no timeout is configured
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response is read into memory
const maxBodyBytes = 32 << 20

// Client fetches state vectors from the upstream API
type Client struct {
	httpClient  *http.Client
	statesURL   string
	credentials Credentials
	logger      *logger.Logger
}

// NewClient creates a new states client. An empty statesURL selects
// DefaultStatesURL and a non-positive timeout selects DefaultTimeout.
func NewClient(statesURL string, credentials Credentials, timeout time.Duration, logger *logger.Logger) *Client {
	if statesURL == "" {
		statesURL = DefaultStatesURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		statesURL:   statesURL,
		credentials: credentials,
		logger:      logger.Named("opensky-client"),
	}
}

// Fetch retrieves and normalizes the current state vectors inside bbox.
// A nil bbox queries the whole world. Every failure is reported through the
// returned FetchResult.
func (c *Client) Fetch(ctx context.Context, bbox *BoundingBox) FetchResult {
	body, err := c.fetchRaw(ctx, bbox)
	if err != nil {
		return Failure(err)
	}

	batch, err := NormalizeBatch(body)
	if err != nil {
		c.logger.Warn("Failed to normalize payload",
			logger.Error(err),
			logger.String("body", preview(body)),
		)
		return Failure(err)
	}

	if batch.Dropped > 0 {
		c.logger.Debug("Dropped state vectors with unexpected width",
			logger.Int("dropped", batch.Dropped),
			logger.Int("kept", len(batch.Records)),
		)
	}

	return FetchResult{
		Timestamp: batch.Timestamp,
		Records:   batch.Records,
		Dropped:   batch.Dropped,
	}
}

// fetchRaw issues the GET request and returns the 2xx body
func (c *Client) fetchRaw(ctx context.Context, bbox *BoundingBox) ([]byte, error) {
	reqURL, err := c.buildURL(bbox)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.credentials.Valid() {
		req.SetBasicAuth(c.credentials.Username, c.credentials.Password)
	}

	c.logger.Debug("Fetching state vectors",
		logger.String("url", reqURL),
		logger.Bool("authenticated", c.credentials.Valid()),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: c.statesURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{URL: c.statesURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       preview(body),
		}
	}

	return body, nil
}

func (c *Client) buildURL(bbox *BoundingBox) (string, error) {
	u, err := url.Parse(c.statesURL)
	if err != nil {
		return "", fmt.Errorf("invalid states url %q: %w", c.statesURL, err)
	}
	if bbox == nil {
		return u.String(), nil
	}
	if err := bbox.Validate(); err != nil {
		return "", fmt.Errorf("invalid bounding box: %w", err)
	}

	q := u.Query()
	for k, v := range bbox.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// preview trims a body for logs and error messages
func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
