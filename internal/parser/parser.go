// Package parser provides adapters for external document extraction engines
// and a router that chains them in fallback order per mime type.
package parser

import (
	"context"
	"fmt"

	"github.com/sells-group/docpipe/internal/model"
)

// RawField is an untyped field candidate reported by an extraction engine.
// Typing and canonicalization happen downstream in the normalizer.
type RawField struct {
	Label      string             `json:"label"`
	Text       string             `json:"text"`
	Confidence float64            `json:"confidence"`
	PageNumber int                `json:"page_number,omitempty"`
	Bounds     *model.BoundingBox `json:"bounds,omitempty"`
}

// PageText is per-page plain text.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Table is a tabular result as reported by an engine.
type Table struct {
	Name       string     `json:"name,omitempty"`
	PageNumber int        `json:"page_number,omitempty"`
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
}

// ParseResult is the uniform output of every adapter.
type ParseResult struct {
	Text       string     `json:"text"`
	Pages      []PageText `json:"pages,omitempty"`
	Fields     []RawField `json:"fields,omitempty"`
	Tables     []Table    `json:"tables,omitempty"`
	Confidence float64    `json:"confidence"`
}

// Parser is the uniform interface to one external extraction engine.
// Parse must respect ctx deadlines; a hung engine is cut off by the router's
// per-adapter timeout and reported as a transient *Error.
type Parser interface {
	Name() string
	Supports(mimeType string) bool
	Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, error)
	HealthCheck(ctx context.Context) error
}

// Error is an adapter failure. Transient failures (timeouts, 5xx) are safe
// to retry on a later run; either way the router advances to the next
// adapter in the chain.
type Error struct {
	Parser    string
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("parser %s: %v", e.Parser, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a terminal adapter failure.
func NewError(parserName string, err error) *Error {
	return &Error{Parser: parserName, Err: err}
}

// NewTransientError wraps err as a retryable adapter failure.
func NewTransientError(parserName string, err error) *Error {
	return &Error{Parser: parserName, Err: err, Transient: true}
}
