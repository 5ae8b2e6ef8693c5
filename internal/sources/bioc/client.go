// Package bioc fetches full-text articles in BioC XML and splits them into the
// passages the pipeline annotates.
package bioc

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

// DefaultBaseURL is the PMC Open Access BioC endpoint.
const DefaultBaseURL = "https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful/pmcoa.cgi"

// Client handles BioC requests.
type Client struct {
	tc      *transport.Client
	baseURL string
}

// NewClient creates a BioC client. An empty baseURL selects DefaultBaseURL.
func NewClient(tc *transport.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{tc: tc, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchDocument retrieves the article identified by pmid.
func (c *Client) FetchDocument(ctx context.Context, pmid string) (*Collection, error) {
	if strings.TrimSpace(pmid) == "" {
		return nil, fmt.Errorf("bioc: empty document id")
	}
	u := fmt.Sprintf("%s/BioC_xml/%s/ascii", c.baseURL, url.PathEscape(pmid))

	body, err := c.tc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}

	var coll Collection
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&coll); err != nil {
		return nil, &errs.ParseError{Source: c.tc.Service(), Passage: -1, Err: fmt.Errorf("decode XML: %w", err)}
	}
	return &coll, nil
}
