// Package mygene resolves gene symbols to genomic coordinates using mygene.info.
package mygene

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/models"
	"github.com/mkoziy/genome/extractor/internal/sources/transport"
)

// DefaultBaseURL is the public mygene.info v3 API.
const DefaultBaseURL = "https://mygene.info/v3"

// Client handles mygene.info requests.
type Client struct {
	tc      *transport.Client
	baseURL string
}

// NewClient creates a mygene client. An empty baseURL selects DefaultBaseURL.
func NewClient(tc *transport.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{tc: tc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Field returns the query field holding coordinates for a build.
func Field(build models.Assembly) string {
	if build == models.AssemblyHG19 {
		return "genomic_pos_hg19"
	}
	return "genomic_pos"
}

// GenomicPosition returns the locus of the best hit for symbol in build. No
// hits, or a hit without coordinates, yields an unset position.
func (c *Client) GenomicPosition(ctx context.Context, symbol string, build models.Assembly) (models.GenomicPosition, error) {
	params := url.Values{}
	params.Set("q", symbol)
	params.Set("fields", Field(build))
	params.Set("species", "human")
	u := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	body, err := c.tc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return models.GenomicPosition{}, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.GenomicPosition{}, &errs.ParseError{Source: c.tc.Service(), Passage: -1, Err: fmt.Errorf("decode %s for %q: %w", Field(build), symbol, err)}
	}
	if len(resp.Hits) == 0 {
		return models.GenomicPosition{}, nil
	}
	list := resp.Hits[0].positions(build)
	if len(list) == 0 {
		return models.GenomicPosition{}, nil
	}
	return list[0].genomic(), nil
}
