// Package sources turns upstream JSON endpoints into trackable fetch
// operations.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evlocate/foundation/config"
	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/internal/httpclient"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/track"
)

// maxBodyBytes caps how much of an upstream response is read. Sources
// serving more than this are misconfigured, not tracked badly.
const maxBodyBytes = 32 << 20

// StatusError reports a non-2xx upstream response. It satisfies the status
// code extraction the tracker performs on failed fetches.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// StatusCode returns the upstream HTTP status
func (e *StatusError) StatusCode() int { return e.Code }

// Client fetches JSON payloads from upstream sources. All fetches through
// one client share a rate limiter, so a burst of scheduled sources cannot
// hammer upstreams simultaneously.
type Client struct {
	http    *httpclient.SaferClient
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient creates a source client from config
func NewClient(cfg config.SourcesConfig, log *zap.SugaredLogger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http:    httpclient.NewSaferClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), burstFor(rpm)),
		log:     log,
	}
}

// NewClientWithHTTP creates a client over a pre-built HTTP client; tests
// use this with httpclient.WrapClient to reach httptest servers
func NewClientWithHTTP(httpClient *httpclient.SaferClient, rpm float64, log *zap.SugaredLogger) *Client {
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), burstFor(rpm)),
		log:     log,
	}
}

// burstFor sizes the limiter burst so a full minute's allowance can be
// spent at once, which is what scheduled fetch fan-out needs
func burstFor(rpm float64) int {
	burst := int(rpm)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Operation builds a tracked fetch operation for one endpoint. The returned
// operation performs a rate-limited GET and decodes the body as a JSON
// object, attaching the upstream status via the tracker's status hint.
func (c *Client) Operation(url string) track.Operation {
	return func(ctx context.Context) (map[string]interface{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit wait aborted")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "building request for %s", url)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching %s", url)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{Code: resp.StatusCode, URL: url}
		}

		var payload map[string]interface{}
		decoder := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
		if err := decoder.Decode(&payload); err != nil {
			return nil, errors.Wrapf(err, "decoding JSON from %s", url)
		}
		if payload == nil {
			// JSON null decodes cleanly into a nil map
			payload = map[string]interface{}{}
		}

		if c.log != nil {
			c.log.Debugw("source fetched",
				logger.FieldSymbol, sym.Fetch,
				"url", url,
				logger.FieldStatusCode, resp.StatusCode,
			)
		}

		payload[track.StatusCodeKey] = resp.StatusCode
		return payload, nil
	}
}
