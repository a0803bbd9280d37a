package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNoProducts    = errors.New("no products found")
	ErrEmptyResponse = errors.New("empty response body")
)

// FetchError wraps errors that occur while fetching a page: network
// failures, timeouts, and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while extracting records from a
// fetched page. Per-container parse failures are skipped by scrapers and
// never surface as a ParseError; this covers page-level problems.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError marks a record that failed the extraction contract
// during a batch save. The record is skipped; the batch continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %q %s", e.Field, e.Reason)
}

// ConfigError wraps a missing or malformed scrape-target configuration
// for one provider. The provider is skipped; orchestration continues.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scrape config error for provider %q: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
