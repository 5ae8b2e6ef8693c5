package hgnc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/ratelimit"
	"github.com/mkoziy/genome/extractor/internal/sources/transport"
)

const brca1XML = `<?xml version="1.0" encoding="UTF-8"?>
<response>
<lst name="responseHeader"><int name="status">0</int><int name="QTime">1</int></lst>
<result name="response" numFound="1" start="0" maxScore="1.0">
<doc>
<str name="hgnc_id">HGNC:1100</str>
<str name="symbol">BRCA1</str>
<str name="name">BRCA1 DNA repair associated</str>
<arr name="alias_symbol"><str>RNF53</str><str>BRCC1</str></arr>
<arr name="alias_name"><str>BRCA1/BRCA2-containing complex, subunit 1</str><str>Fanconi anemia, complementation group S</str></arr>
</doc>
</result>
</response>`

const tp53XML = `<?xml version="1.0" encoding="UTF-8"?>
<response>
<result name="response" numFound="1" start="0">
<doc>
<str name="hgnc_id">HGNC:11998</str>
<str name="symbol">TP53</str>
<str name="name">tumor protein p53</str>
<arr name="alias_symbol"><str>p53</str></arr>
</doc>
</result>
</response>`

const emptyXML = `<response><result name="response" numFound="0" start="0"></result></response>`

const ambiguousXML = `<response><result name="response" numFound="2" start="0">
<doc><str name="hgnc_id">HGNC:1</str><str name="name">first</str></doc>
<doc><str name="hgnc_id">HGNC:2</str><str name="name">second</str></doc>
</result></response>`

func newTestClient(t *testing.T, bodies map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	log, _ := test.NewNullLogger()
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSec: 1000, Burst: 1000, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	return NewClient(transport.New("hgnc", limiter, 1, time.Second, log), srv.URL)
}

func TestFetchSymbol(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/fetch/symbol/BRCA1": brca1XML,
		"/fetch/symbol/TP53":  tp53XML,
		"/fetch/symbol/XYZ":   emptyXML,
		"/fetch/symbol/AMB":   ambiguousXML,
	})
	ctx := context.Background()

	res, err := c.FetchSymbol(ctx, "BRCA1")
	require.NoError(t, err)
	require.Equal(t, 1, res.NumFound)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, Record{
		HGNCID: "HGNC:1100",
		Symbol: "BRCA1",
		Name:   "BRCA1 DNA repair associated",
		Aliases: []string{
			"BRCA1/BRCA2-containing complex, subunit 1",
			"Fanconi anemia, complementation group S",
		},
	}, res.Docs[0])

	res, err = c.FetchSymbol(ctx, "TP53")
	require.NoError(t, err)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, "HGNC:11998", res.Docs[0].HGNCID)
	assert.NotNil(t, res.Docs[0].Aliases)
	assert.Empty(t, res.Docs[0].Aliases)

	res, err = c.FetchSymbol(ctx, "XYZ")
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumFound)
	assert.Empty(t, res.Docs)

	res, err = c.FetchSymbol(ctx, "AMB")
	require.NoError(t, err)
	assert.Equal(t, 2, res.NumFound)
	assert.Len(t, res.Docs, 2)
}

func TestFetchSymbolMalformed(t *testing.T) {
	c := newTestClient(t, map[string]string{"/fetch/symbol/BAD": "<response><result"})

	_, err := c.FetchSymbol(context.Background(), "BAD")
	var perr *errs.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "hgnc", perr.Source)
}
