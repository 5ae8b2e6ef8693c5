// Package transport executes HTTP requests against the upstream services with
// per-service rate limiting, bounded retries and a circuit breaker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/ratelimit"
)

const (
	userAgent       = "genome-extractor/1.0"
	maxErrorBody    = 256
	tripAfterFailed = 5
)

// Observer receives one call per HTTP round trip.
type Observer interface {
	ObserveRequest(service, outcome string, elapsed time.Duration)
}

// RequestFunc builds a fresh request for every attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client is safe for concurrent use.
type Client struct {
	service    string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	maxRetries int
	breaker    *gobreaker.CircuitBreaker
	observer   Observer
	log        logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithObserver reports every round trip to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for one upstream service.
func New(service string, limiter ratelimit.Limiter, maxRetries int, timeout time.Duration, log logrus.FieldLogger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		service:    service,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: maxRetries,
		log:        log.WithField("service", service),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailed
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return c
}

// Service returns the upstream name used in logs and errors.
func (c *Client) Service() string { return c.service }

// Do executes the request and returns the body of a 2xx response. Failures
// are returned as *errs.FetchError.
func (c *Client) Do(ctx context.Context, newReq RequestFunc) ([]byte, error) {
	var body []byte
	err := ratelimit.Do(ctx, c.limiter, c.maxRetries, func(ctx context.Context, attempt int) (bool, error) {
		req, err := newReq(ctx)
		if err != nil {
			return false, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		b, ferr := c.roundTrip(req)
		if ferr == nil {
			body = b
			return false, nil
		}
		if ferr.Retryable() && attempt < c.maxRetries {
			c.log.WithError(ferr).WithField("attempt", attempt+1).Debug("request failed, retrying")
		}
		return ferr.Retryable(), ferr
	})
	if err != nil {
		var ferr *errs.FetchError
		if !errors.As(err, &ferr) {
			err = &errs.FetchError{Service: c.service, Err: err}
		}
		return nil, err
	}
	return body, nil
}

type response struct {
	status int
	body   []byte
}

// errServer marks responses that count against the breaker.
type errServer struct {
	resp response
}

func (e *errServer) Error() string { return "server error " + strconv.Itoa(e.resp.status) }

func (c *Client) roundTrip(req *http.Request) ([]byte, *errs.FetchError) {
	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		r := response{status: resp.StatusCode, body: body}
		if r.status >= 500 || r.status == http.StatusTooManyRequests {
			return nil, &errServer{resp: r}
		}
		return r, nil
	})

	url := req.URL.String()
	if err != nil {
		var srv *errServer
		switch {
		case errors.As(err, &srv):
			c.observe(strconv.Itoa(srv.resp.status), start)
			return nil, &errs.FetchError{Service: c.service, URL: url, StatusCode: srv.resp.status, Err: errors.New(snippet(srv.resp.body))}
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.observe("circuit_open", start)
			return nil, &errs.FetchError{Service: c.service, URL: url, Err: fmt.Errorf("%w: %v", errs.ErrCircuitOpen, err)}
		default:
			c.observe("error", start)
			return nil, &errs.FetchError{Service: c.service, URL: url, Err: err}
		}
	}

	r := out.(response)
	c.observe(strconv.Itoa(r.status), start)
	if r.status < 200 || r.status >= 300 {
		return nil, &errs.FetchError{Service: c.service, URL: url, StatusCode: r.status, Err: errors.New(snippet(r.body))}
	}
	return r.body, nil
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(c.service, outcome, time.Since(start))
	}
}

func snippet(body []byte) string {
	if len(body) == 0 {
		return "empty body"
	}
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
