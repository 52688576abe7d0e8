package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/docpipe/internal/resilience"
)

// serviceResponse is the JSON body returned by the extraction services.
type serviceResponse struct {
	Text       string     `json:"text"`
	Pages      []PageText `json:"pages,omitempty"`
	Fields     []RawField `json:"fields,omitempty"`
	Tables     []Table    `json:"tables,omitempty"`
	Confidence float64    `json:"confidence"`
}

// ServiceAdapter wraps one HTTP-based extraction service as a Parser.
// Requests are rate-limited and retried on transient failures; the caller's
// context deadline bounds the whole attempt.
type ServiceAdapter struct {
	name    string
	baseURL string
	apiKey  string
	mimes   map[string]bool
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig

	// defaultConf fills in for services that omit their own confidence.
	defaultConf float64
}

// ServiceOption configures a ServiceAdapter.
type ServiceOption func(*ServiceAdapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ServiceOption {
	return func(a *ServiceAdapter) { a.http = hc }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) ServiceOption {
	return func(a *ServiceAdapter) { a.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) ServiceOption {
	return func(a *ServiceAdapter) { a.retry = cfg }
}

// WithDefaultConfidence substitutes conf when the service reports none.
func WithDefaultConfidence(conf float64) ServiceOption {
	return func(a *ServiceAdapter) { a.defaultConf = conf }
}

// NewServiceAdapter creates an adapter for an HTTP extraction service.
// mimes lists the mime types the service accepts.
func NewServiceAdapter(name, baseURL, apiKey string, mimes []string, opts ...ServiceOption) *ServiceAdapter {
	a := &ServiceAdapter{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		mimes:   make(map[string]bool, len(mimes)),
		http: &http.Client{
			Timeout: 90 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, m := range mimes {
		a.mimes[m] = true
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ServiceAdapter) Name() string { return a.name }

func (a *ServiceAdapter) Supports(mimeType string) bool {
	return a.mimes[mimeType] || a.mimes["*"]
}

// Parse posts the document to the service and maps the response. Failures
// are returned as *Error; 5xx and timeouts are transient.
func (a *ServiceAdapter) Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, NewTransientError(a.name, err)
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*serviceResponse, error) {
		return a.doParse(ctx, content, mimeType)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, NewTransientError(a.name, err)
		}
		return nil, NewError(a.name, err)
	}

	conf := resp.Confidence
	if conf == 0 {
		conf = a.defaultConf
	}
	return &ParseResult{
		Text:       resp.Text,
		Pages:      resp.Pages,
		Fields:     resp.Fields,
		Tables:     resp.Tables,
		Confidence: conf,
	}, nil
}

func (a *ServiceAdapter) doParse(ctx context.Context, content []byte, mimeType string) (*serviceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/parse", bytes.NewReader(content))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: build request", a.name)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	httpResp, err := a.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: request", a.name)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body for the error message; never the
		// document itself.
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		err := eris.Errorf("%s: status %d: %s", a.name, httpResp.StatusCode, string(snippet))
		if resilience.IsTransientHTTPStatus(httpResp.StatusCode) {
			return nil, resilience.NewTransientError(err, httpResp.StatusCode)
		}
		return nil, err
	}

	var out serviceResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, eris.Wrapf(err, "%s: decode response", a.name)
	}
	return &out, nil
}

// HealthCheck probes the service's health endpoint.
func (a *ServiceAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrapf(err, "%s: build health request", a.name)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: health request", a.name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: health status %d", a.name, resp.StatusCode)
	}
	return nil
}
