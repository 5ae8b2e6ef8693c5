// Package errs defines the failure classes shared by every pipeline stage.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports that a symbol has zero or more than one canonical match.
	ErrNotFound = errors.New("no canonical match")
	// ErrCircuitOpen reports that calls to a failing service are short-circuited.
	ErrCircuitOpen = errors.New("circuit open")
)

// FetchError is a transport or HTTP level failure against an external service.
type FetchError struct {
	Service    string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: fetch %s: status %d: %v", e.Service, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: fetch %s: %v", e.Service, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch {
	case errors.Is(e.Err, ErrCircuitOpen),
		errors.Is(e.Err, context.Canceled),
		errors.Is(e.Err, context.DeadlineExceeded):
		return false
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// ParseError is a response body whose shape does not match what was expected.
// Passage is the zero-based passage index, or -1 when the body is not per passage.
type ParseError struct {
	Source  string
	Passage int
	Err     error
}

func (e *ParseError) Error() string {
	if e.Passage >= 0 {
		return fmt.Sprintf("%s: parse passage %d: %v", e.Source, e.Passage, e.Err)
	}
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError carries the registry outcome that led to ErrNotFound.
type NotFoundError struct {
	Symbol   string
	NumFound int
}

func (e *NotFoundError) Error() string {
	if e.NumFound > 1 {
		return fmt.Sprintf("symbol %q is ambiguous (%d matches)", e.Symbol, e.NumFound)
	}
	return fmt.Sprintf("symbol %q not found", e.Symbol)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError is a failed store write for one row.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigError is an invalid or unreadable configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Exit codes returned by the CLI.
const (
	ExitOK          = 0
	ExitGeneric     = 1
	ExitFetch       = 2
	ExitParse       = 3
	ExitPersistence = 4
	ExitConfig      = 5
)

// ExitCode maps an error to the CLI exit code of its failure class.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cfgErr   *ConfigError
		fetchErr *FetchError
		parseErr *ParseError
		persErr  *PersistenceError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &fetchErr):
		return ExitFetch
	case errors.As(err, &parseErr):
		return ExitParse
	case errors.As(err, &persErr):
		return ExitPersistence
	default:
		return ExitGeneric
	}
}
