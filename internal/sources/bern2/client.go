// Package bern2 calls the BERN2 biomedical named-entity annotation service.
package bern2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mkoziy/genome/extractor/internal/models"
	"github.com/mkoziy/genome/extractor/internal/sources/transport"
)

// DefaultBaseURL is the public BERN2 deployment.
const DefaultBaseURL = "http://bern2.korea.ac.kr"

// Client handles BERN2 requests.
type Client struct {
	tc      *transport.Client
	baseURL string
	log     logrus.FieldLogger
}

// NewClient creates a BERN2 client. An empty baseURL selects DefaultBaseURL.
func NewClient(tc *transport.Client, baseURL string, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{tc: tc, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

type plainRequest struct {
	Text string `json:"text"`
}

// Annotate submits one passage text and returns the raw annotation payload.
// A body that is not JSON is returned as a JSON string holding the body, so
// reconciliation rejects it per passage and the parse error policy applies.
func (c *Client) Annotate(ctx context.Context, text string) (json.RawMessage, error) {
	payload, err := json.Marshal(plainRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	body, err := c.tc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plain", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		c.log.WithField("bytes", len(body)).Warn("annotation response is not JSON, keeping body as a string")
		quoted, err := json.Marshal(string(body))
		if err != nil {
			return nil, fmt.Errorf("quote response: %w", err)
		}
		return json.RawMessage(quoted), nil
	}
	return json.RawMessage(body), nil
}

// AnnotateAll annotates every passage with at most workers requests in flight.
// The result is index-aligned with passages. The first failure cancels the
// remaining requests.
func (c *Client) AnnotateAll(ctx context.Context, passages []models.Passage, workers int) ([]json.RawMessage, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]json.RawMessage, len(passages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range passages {
		i, p := i, p
		g.Go(func() error {
			payload, err := c.Annotate(ctx, p.Text)
			if err != nil {
				return fmt.Errorf("annotate passage %d: %w", i, err)
			}
			out[i] = payload
			c.log.WithFields(logrus.Fields{"passage": i, "section": p.Section}).Debug("passage annotated")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
