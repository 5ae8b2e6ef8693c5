package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/mkoziy/genome/extractor/internal/database"
	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/migrations"
	"github.com/mkoziy/genome/extractor/internal/models"
	"github.com/mkoziy/genome/extractor/internal/repositories"
	"github.com/mkoziy/genome/extractor/internal/sources/bioc"
	"github.com/mkoziy/genome/extractor/internal/sources/hgnc"
	"github.com/mkoziy/genome/extractor/internal/stagecache"
	"github.com/mkoziy/genome/extractor/internal/validate"
)

type fakeFetcher struct {
	coll  *bioc.Collection
	err   error
	calls int
}

func (f *fakeFetcher) FetchDocument(_ context.Context, _ string) (*bioc.Collection, error) {
	f.calls++
	return f.coll, f.err
}

// fakeAnnotator answers with the payload registered for each passage text.
type fakeAnnotator struct {
	payloads map[string]string
	calls    int
}

func (f *fakeAnnotator) AnnotateAll(_ context.Context, passages []models.Passage, _ int) ([]json.RawMessage, error) {
	f.calls++
	out := make([]json.RawMessage, len(passages))
	for i, p := range passages {
		body, ok := f.payloads[p.Text]
		if !ok {
			return nil, &errs.FetchError{Service: "bern2", StatusCode: 500, Err: errors.New("no payload")}
		}
		out[i] = json.RawMessage(body)
	}
	return out, nil
}

type fakeRegistry map[string]hgnc.Record

func (f fakeRegistry) FetchSymbol(_ context.Context, symbol string) (*hgnc.Result, error) {
	rec, ok := f[symbol]
	if !ok {
		return &hgnc.Result{}, nil
	}
	return &hgnc.Result{NumFound: 1, Docs: []hgnc.Record{rec}}, nil
}

type fakeCoords map[string]models.GenomicPosition

func (f fakeCoords) GenomicPosition(_ context.Context, symbol string, build models.Assembly) (models.GenomicPosition, error) {
	return f[symbol+"/"+string(build)], nil
}

type fakeGraph struct {
	genes []models.CanonicalGene
	err   error
}

func (f *fakeGraph) Export(_ context.Context, _, _ string, genes []models.CanonicalGene) error {
	f.genes = genes
	return f.err
}

func passage(section, kind, text string) bioc.Passage {
	return bioc.Passage{
		Infons: []bioc.Infon{{Key: "section_type", Value: section}, {Key: "type", Value: kind}},
		Text:   text,
	}
}

func document() *bioc.Collection {
	return &bioc.Collection{Documents: []bioc.Document{{
		ID: "38790019",
		Passages: []bioc.Passage{
			passage("TITLE", "front", "title"),
			passage("ABSTRACT", "abstract", "p1"),
			passage("RESULTS", "paragraph", "p2"),
		},
	}}}
}

func payloads() map[string]string {
	return map[string]string{
		"p1": `{"annotations":[{"mention":"BRCA1","obj":"gene","prob":0.9},{"mention":"breast cancer","obj":"disease","prob":0.999},{"mention":"FOO1","obj":"gene","prob":0.8}]}`,
		"p2": `{"annotations":[{"mention":"BRCA1","obj":"gene","prob":0.9},{"mention":"ovarian cancer","obj":"disease","prob":0.995},{"mention":"flu","obj":"disease","prob":0.5}]}`,
	}
}

type harness struct {
	db        *bun.DB
	fetcher   *fakeFetcher
	annotator *fakeAnnotator
	graph     *fakeGraph
	cache     *stagecache.FileStore
	deps      Deps
	hook      *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log, hook := test.NewNullLogger()

	db, err := database.NewDB(database.MemoryDSN(strings.ReplaceAll(t.Name(), "/", "_")), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.RunMigrations(ctx, db, log))

	v, err := validate.New(
		fakeRegistry{"BRCA1": {HGNCID: "HGNC:1100", Symbol: "BRCA1", Name: "BRCA1 DNA repair associated", Aliases: []string{"RNF53"}}},
		fakeCoords{"BRCA1/hg38": {Chromosome: "17", Start: 43044295, End: 43170245, Strand: "-"}},
		validate.Options{},
		log,
	)
	require.NoError(t, err)

	h := &harness{
		db:        db,
		fetcher:   &fakeFetcher{coll: document()},
		annotator: &fakeAnnotator{payloads: payloads()},
		graph:     &fakeGraph{},
		cache:     stagecache.NewFileStore(t.TempDir()),
		hook:      hook,
	}
	h.deps = Deps{
		Fetcher:   h.fetcher,
		Annotator: h.annotator,
		Resolver:  v,
		Saver:     repositories.NewPersister(db, log),
		Runs:      repositories.NewRunLog(db),
		Graph:     h.graph,
		Cache:     h.cache,
		Log:       log,
	}
	return h
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	out := filepath.Join(t.TempDir(), "output.json")

	p, err := New(h.deps, Options{PMID: "38790019", OutputPath: out, ConfigSnapshot: "pmid: \"38790019\""})
	require.NoError(t, err)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Passages)
	assert.Equal(t, 2, sum.Symbols)
	assert.Equal(t, []string{"FOO1"}, sum.Unresolved)
	require.Len(t, sum.Genes, 1)
	assert.Equal(t, []string{"breast cancer", "ovarian cancer"}, sum.Genes[0].Diseases)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var written []models.CanonicalGene
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, sum.Genes, written)
	assert.True(t, strings.HasPrefix(string(data), "[\n    {"))

	ctx := context.Background()
	gene, err := repositories.GetGene(ctx, h.db, "HGNC:1100")
	require.NoError(t, err)
	assert.Equal(t, []string{"RNF53"}, gene.AliasNames())
	assert.Len(t, gene.Diseases, 2)
	assert.Nil(t, gene.HG19PosID)

	run, err := repositories.GetRun(ctx, h.db, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, run.Status)
	assert.Equal(t, 2, run.PassagesCount)
	assert.Equal(t, 2, run.SymbolsCount)
	assert.Equal(t, 1, run.GenesResolved)
	assert.Equal(t, models.StringArray{"FOO1"}, run.GenesUnresolved)
	require.NotNil(t, run.ConfigSnapshot)

	assert.Len(t, h.graph.genes, 1)

	var cached []models.Passage
	ok, err := h.cache.Get(ctx, "38790019", stagecache.StagePassages, &cached)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestRunReusesCachedStages(t *testing.T) {
	h := newHarness(t)
	p, err := New(h.deps, Options{PMID: "38790019"})
	require.NoError(t, err)
	first, err := p.Run(context.Background())
	require.NoError(t, err)

	h.fetcher.err = errors.New("offline")
	h.annotator.payloads = nil
	p, err = New(h.deps, Options{PMID: "38790019", UseCache: true})
	require.NoError(t, err)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Genes, second.Genes)
	assert.Equal(t, 1, h.fetcher.calls)
	assert.Equal(t, 1, h.annotator.calls)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunWithoutCacheFlagRecomputes(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		p, err := New(h.deps, Options{PMID: "38790019"})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.fetcher.calls)

	count, err := h.db.NewSelect().Model((*models.Gene)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParseErrorPolicy(t *testing.T) {
	malformed := func(h *harness) {
		h.annotator.payloads["p2"] = `{"text":"no annotations"}`
	}

	t.Run("abort", func(t *testing.T) {
		h := newHarness(t)
		malformed(h)
		p, err := New(h.deps, Options{PMID: "38790019"})
		require.NoError(t, err)

		_, err = p.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, errs.ExitParse, errs.ExitCode(err))

		var perr *errs.ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, 1, perr.Passage)

		var runs []models.PipelineRun
		require.NoError(t, h.db.NewSelect().Model(&runs).Scan(context.Background()))
		require.Len(t, runs, 1)
		assert.Equal(t, models.RunFailed, runs[0].Status)
		require.NotNil(t, runs[0].ErrorLog)
		assert.Contains(t, *runs[0].ErrorLog, "missing annotations")
	})

	t.Run("skip", func(t *testing.T) {
		h := newHarness(t)
		malformed(h)
		p, err := New(h.deps, Options{PMID: "38790019", SkipParseErrors: true})
		require.NoError(t, err)

		sum, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.SkippedPassages)
		require.Len(t, sum.Genes, 1)
		assert.Equal(t, []string{"breast cancer"}, sum.Genes[0].Diseases)
	})

	t.Run("skip non-JSON annotation body", func(t *testing.T) {
		h := newHarness(t)
		h.annotator.payloads["p2"] = `"<html>gateway timeout</html>"`
		p, err := New(h.deps, Options{PMID: "38790019", SkipParseErrors: true})
		require.NoError(t, err)

		sum, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.SkippedPassages)
		require.Len(t, sum.Genes, 1)
		assert.Equal(t, []string{"breast cancer"}, sum.Genes[0].Diseases)
	})
}

func TestRunFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &errs.FetchError{Service: "bioc", StatusCode: 404, Err: errors.New("not found")}

	p, err := New(h.deps, Options{PMID: "38790019"})
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.Equal(t, errs.ExitFetch, errs.ExitCode(err))
	assert.Equal(t, 0, h.annotator.calls)
}

func TestGraphFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.graph.err = fmt.Errorf("neo4j unavailable")

	p, err := New(h.deps, Options{PMID: "38790019"})
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	var warned bool
	for _, e := range h.hook.AllEntries() {
		if e.Message == "graph export failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunWithoutPersistence(t *testing.T) {
	h := newHarness(t)
	h.deps.Saver = nil
	h.deps.Runs = nil
	h.deps.Graph = nil
	h.deps.Cache = nil

	p, err := New(h.deps, Options{PMID: "38790019"})
	require.NoError(t, err)
	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sum.Persisted)

	count, err := h.db.NewSelect().Model((*models.Gene)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewRequiresStages(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}
