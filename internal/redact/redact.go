// Package redact wraps the PII-scrubbing service applied to extracted
// content before any of it is persisted.
package redact

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/resilience"
)

// Redactor scrubs sensitive content from raw bytes. Every raw text or table
// value must pass through a Redactor before it reaches the store.
type Redactor interface {
	Redact(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// Service calls the HTTP redaction collaborator.
type Service struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewService creates a Redactor backed by the redaction service.
func NewService(baseURL, apiKey string) *Service {
	return &Service{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
}

// Redact posts the content and returns the scrubbed bytes.
func (s *Service) Redact(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/redact", bytes.NewReader(data))
		if err != nil {
			return nil, eris.Wrap(err, "redact: build request")
		}
		req.Header.Set("Content-Type", mimeType)
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "redact: request")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("redact: status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		out, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "redact: read response")
		}
		return out, nil
	})
}

// Passthrough is a no-op Redactor for development and tests.
type Passthrough struct{}

func (Passthrough) Redact(_ context.Context, data []byte, _ string) ([]byte, error) {
	return data, nil
}
