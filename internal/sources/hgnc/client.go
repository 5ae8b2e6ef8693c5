// Package hgnc looks up approved gene symbols in the HGNC REST service.
package hgnc

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/sources/transport"
)

// DefaultBaseURL is the public HGNC REST endpoint.
const DefaultBaseURL = "https://rest.genenames.org"

// Client handles HGNC requests.
type Client struct {
	tc      *transport.Client
	baseURL string
}

// NewClient creates an HGNC client. An empty baseURL selects DefaultBaseURL.
func NewClient(tc *transport.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{tc: tc, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchSymbol returns every record whose approved symbol equals symbol.
func (c *Client) FetchSymbol(ctx context.Context, symbol string) (*Result, error) {
	u := fmt.Sprintf("%s/fetch/symbol/%s", c.baseURL, url.PathEscape(symbol))

	body, err := c.tc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/xml")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp xmlResponse
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return nil, &errs.ParseError{Source: c.tc.Service(), Passage: -1, Err: fmt.Errorf("decode XML for %q: %w", symbol, err)}
	}

	res := &Result{NumFound: resp.Result.NumFound, Docs: make([]Record, 0, len(resp.Result.Docs))}
	for _, d := range resp.Result.Docs {
		res.Docs = append(res.Docs, d.record())
	}
	return res, nil
}
