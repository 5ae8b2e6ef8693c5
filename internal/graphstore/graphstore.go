// Package graphstore mirrors resolved genes and their diseases into a neo4j
// (or Memgraph) property graph.
package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/mkoziy/genome/extractor/internal/models"
)

var constraints = []string{
	"CREATE CONSTRAINT gene_hgnc_id IF NOT EXISTS FOR (g:Gene) REQUIRE g.hgnc_id IS UNIQUE",
	"CREATE CONSTRAINT disease_name IF NOT EXISTS FOR (d:Disease) REQUIRE d.name IS UNIQUE",
}

const mergeGenes = `
UNWIND $genes AS gene
MERGE (g:Gene {hgnc_id: gene.hgnc_id})
SET g.name = gene.name,
    g.aliases = gene.aliases,
    g.hg38 = coalesce(gene.hg38, g.hg38),
    g.hg19 = coalesce(gene.hg19, g.hg19)
WITH g, gene
UNWIND gene.diseases AS disease
MERGE (d:Disease {name: disease})
MERGE (g)-[r:ASSOCIATED_WITH]->(d)
SET r.pmid = $pmid, r.run_id = $run_id
`

// Sink writes to one graph database.
type Sink struct {
	driver   neo4j.DriverWithContext
	database string
	log      logrus.FieldLogger
}

// Open connects and verifies connectivity.
func Open(ctx context.Context, uri, user, password, database string, log logrus.FieldLogger) (*Sink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Sink{driver: driver, database: database, log: log}, nil
}

func (s *Sink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Sink) exec(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer, opts...)
}

// EnsureSchema creates the uniqueness constraints. Failures are logged since
// some servers reject IF NOT EXISTS.
func (s *Sink) EnsureSchema(ctx context.Context) {
	for _, q := range constraints {
		if _, err := s.exec(ctx, q, nil); err != nil {
			s.log.WithError(err).WithField("query", q).Warn("graph constraint not created")
		}
	}
}

// Export merges genes, diseases and their associations. Nodes are keyed by
// HGNC id and disease name so repeated exports are idempotent.
func (s *Sink) Export(ctx context.Context, pmid, runID string, genes []models.CanonicalGene) error {
	if len(genes) == 0 {
		return nil
	}
	res, err := s.exec(ctx, mergeGenes, Params(pmid, runID, genes))
	if err != nil {
		return fmt.Errorf("export genes: %w", err)
	}
	c := res.Summary.Counters()
	s.log.WithFields(logrus.Fields{
		"nodes_created":         c.NodesCreated(),
		"relationships_created": c.RelationshipsCreated(),
	}).Info("graph export complete")
	return nil
}

// Params builds the query parameters. Unset positions become null so they
// never overwrite stored coordinates.
func Params(pmid, runID string, genes []models.CanonicalGene) map[string]any {
	rows := make([]any, 0, len(genes))
	for _, g := range genes {
		diseases := make([]any, 0, len(g.Diseases))
		for _, d := range g.Diseases {
			diseases = append(diseases, d)
		}
		aliases := make([]any, 0, len(g.Aliases))
		for _, a := range g.Aliases {
			aliases = append(aliases, a)
		}
		rows = append(rows, map[string]any{
			"hgnc_id":  g.HGNCID,
			"name":     g.Name,
			"aliases":  aliases,
			"hg38":     position(g.HG38),
			"hg19":     position(g.HG19),
			"diseases": diseases,
		})
	}
	return map[string]any{"genes": rows, "pmid": pmid, "run_id": runID}
}

func position(p models.GenomicPosition) any {
	if !p.IsSet() {
		return nil
	}
	return p.String()
}
