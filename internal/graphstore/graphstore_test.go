package graphstore

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoziy/genome/extractor/internal/models"
)

func sampleGenes() []models.CanonicalGene {
	return []models.CanonicalGene{
		{
			HGNCID:   "HGNC:1100",
			Name:     "BRCA1 DNA repair associated",
			Aliases:  []string{"RNF53"},
			HG38:     models.GenomicPosition{Chromosome: "17", Start: 43044295, End: 43170245, Strand: "-"},
			Diseases: []string{"breast cancer", "ovarian cancer"},
		},
		{
			HGNCID:   "HGNC:11998",
			Name:     "tumor protein p53",
			Aliases:  []string{},
			Diseases: []string{},
		},
	}
}

func TestParams(t *testing.T) {
	p := Params("38790019", "run-1", sampleGenes())

	assert.Equal(t, "38790019", p["pmid"])
	assert.Equal(t, "run-1", p["run_id"])

	rows, ok := p["genes"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)

	brca1 := rows[0].(map[string]any)
	assert.Equal(t, "HGNC:1100", brca1["hgnc_id"])
	assert.Equal(t, "chr17:43044295-43170245:-", brca1["hg38"])
	assert.Nil(t, brca1["hg19"])
	assert.Equal(t, []any{"breast cancer", "ovarian cancer"}, brca1["diseases"])
	assert.Equal(t, []any{"RNF53"}, brca1["aliases"])

	tp53 := rows[1].(map[string]any)
	assert.Equal(t, []any{}, tp53["diseases"])
	assert.Nil(t, tp53["hg38"])
}

func TestExportIntegration(t *testing.T) {
	uri := os.Getenv("EXTRACTOR_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("EXTRACTOR_TEST_NEO4J_URI not set")
	}
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	sink, err := Open(ctx, uri, os.Getenv("EXTRACTOR_TEST_NEO4J_USER"), os.Getenv("EXTRACTOR_TEST_NEO4J_PASSWORD"), "", log)
	require.NoError(t, err)
	defer sink.Close(ctx)

	sink.EnsureSchema(ctx)
	require.NoError(t, sink.Export(ctx, "38790019", "run-1", sampleGenes()))
	require.NoError(t, sink.Export(ctx, "38790019", "run-2", sampleGenes()))

	res, err := sink.exec(ctx, "MATCH (:Gene {hgnc_id: 'HGNC:1100'})-[r:ASSOCIATED_WITH]->(:Disease) RETURN count(r) AS n", nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	n, _ := res.Records[0].Get("n")
	assert.EqualValues(t, 2, n)
}
