package identityclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	context_ "github.com/mkrupp/store/internal/infra/context"
	"github.com/mkrupp/store/internal/infra/logging"
)

const TraceIDHeader = "X-Request-ID"

// ErrUnexpectedStatus is returned when the identity service answers with a 5xx or an
// otherwise unexpected status code.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPClientConfig holds configuration for the HTTP identity client.
type HTTPClientConfig struct {
	// BaseURL is the root URL of the identity service
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080" toml:"base_url"`
}

// HTTPClient implements AuthClient against the identity service's GET /validate endpoint.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.identitysvc.identityclient.http_client"),
		cfg:        cfg,
	}
}

// Validate implements AuthClient.Validate.
func (c *HTTPClient) Validate(ctx context.Context, loginID, token string) (_ uuid.UUID, _ bool, err error) {
	log := c.log.With(logging.Group("user", "loginId", loginID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "validate failed", "error", err)
		}
	}()

	query := url.Values{}
	query.Set("loginId", loginID)
	query.Set("token", token)

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/validate?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("new request: %w", err)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		log.DebugContext(ctx, "token rejected", "status", resp.StatusCode)

		_, _ = io.Copy(io.Discard, resp.Body)

		return uuid.Nil, false, nil
	default:
		return uuid.Nil, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var userID uuid.UUID
	if err := json.NewDecoder(resp.Body).Decode(&userID); err != nil {
		return uuid.Nil, false, fmt.Errorf("decode response: %w", err)
	}

	return userID, true, nil
}
