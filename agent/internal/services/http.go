package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mint-sniper/shared/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrTransport covers network failures, timeouts and non-2xx statuses.
var ErrTransport = errors.New("provider transport error")

// ErrMalformed is returned when a provider answers with an unexpected payload.
var ErrMalformed = errors.New("provider returned malformed payload")

const maxBodyBytes = 4 << 20

// httpSource is the shared plumbing of every REST provider: one client,
// one limiter, one JSON decode path.
type httpSource struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func newHTTPSource(name, baseURL string, timeout time.Duration, rps float64, burst int, appLogger *logger.Logger) httpSource {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return httpSource{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     appLogger,
	}
}

// getJSON issues a single GET and decodes the body into out.
// Every failure is wrapped in ErrTransport or ErrMalformed.
func (s httpSource) getJSON(ctx context.Context, url string, out interface{}) error {
	urlField := zap.String("url", url)

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s rate limiter wait: %v", ErrTransport, s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s request creation: %v", ErrTransport, s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Debug("Provider request failed", zap.String("provider", s.name), urlField, zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrTransport, s.name, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyField := zap.Skip()
		if readErr == nil && len(body) > 0 {
			bodyField = zap.ByteString("responseBody", truncate(body, 256))
		}
		s.log.Debug("Provider returned non-2xx status", zap.String("provider", s.name), urlField, zap.Int("statusCode", resp.StatusCode), bodyField)
		return fmt.Errorf("%w: %s status %s", ErrTransport, s.name, resp.Status)
	}
	if readErr != nil {
		return fmt.Errorf("%w: %s reading body: %v", ErrTransport, s.name, readErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		s.log.Debug("Provider JSON parsing failed", zap.String("provider", s.name), urlField, zap.Error(err), zap.ByteString("rawBody", truncate(body, 256)))
		return fmt.Errorf("%w: %s: %v", ErrMalformed, s.name, err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
