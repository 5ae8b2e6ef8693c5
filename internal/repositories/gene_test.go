package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/mkoziy/genome/extractor/internal/database"
	"github.com/mkoziy/genome/extractor/internal/migrations"
	"github.com/mkoziy/genome/extractor/internal/models"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.NewDB(database.MemoryDSN(t.Name()), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, _ := test.NewNullLogger()
	require.NoError(t, migrations.RunMigrations(context.Background(), db, log))
	return db
}

func count(t *testing.T, db *bun.DB, model interface{}) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func brca1() models.CanonicalGene {
	return models.CanonicalGene{
		HGNCID:   "HGNC:1100",
		Name:     "BRCA1 DNA repair associated",
		Aliases:  []string{"BRCC1", "RNF53"},
		HG38:     models.GenomicPosition{Chromosome: "17", Start: 43044295, End: 43125483, Strand: "-"},
		HG19:     models.GenomicPosition{Chromosome: "17", Start: 41196312, End: 41277500, Strand: "-"},
		Diseases: []string{"breast cancer", "ovarian cancer"},
	}
}

func TestUpsertPositionReusesRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pos := models.GenomicPosition{Chromosome: "17", Start: 1, End: 2}

	first, err := UpsertPosition(ctx, db, models.AssemblyHG38, pos)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := UpsertPosition(ctx, db, models.AssemblyHG38, pos)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)

	other, err := UpsertPosition(ctx, db, models.AssemblyHG19, pos)
	require.NoError(t, err)
	assert.NotEqual(t, *first, *other)

	assert.Equal(t, 2, count(t, db, (*models.Position)(nil)))
}

func TestUpsertPositionUnsetStoresNothing(t *testing.T) {
	db := newTestDB(t)
	id, err := UpsertPosition(context.Background(), db, models.AssemblyHG19, models.GenomicPosition{})
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, 0, count(t, db, (*models.Position)(nil)))
}

func TestUpsertDiseaseFindOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	a, err := UpsertDisease(ctx, db, "breast cancer")
	require.NoError(t, err)
	b, err := UpsertDisease(ctx, db, "breast cancer")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = UpsertDisease(ctx, db, "")
	assert.Error(t, err)
}

func TestSaveGenesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log, _ := test.NewNullLogger()
	p := NewPersister(db, log)

	genes := []models.CanonicalGene{brca1()}
	report := p.SaveGenes(ctx, genes)
	require.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Genes)
	assert.Equal(t, 2, report.Links)

	report = p.SaveGenes(ctx, genes)
	require.Empty(t, report.Errors)

	assert.Equal(t, 1, count(t, db, (*models.Gene)(nil)))
	assert.Equal(t, 2, count(t, db, (*models.Position)(nil)))
	assert.Equal(t, 2, count(t, db, (*models.GeneAlias)(nil)))
	assert.Equal(t, 2, count(t, db, (*models.Disease)(nil)))
	assert.Equal(t, 2, count(t, db, (*models.GeneDisease)(nil)))

	stored, err := GetGene(ctx, db, "HGNC:1100")
	require.NoError(t, err)
	assert.Equal(t, "BRCA1 DNA repair associated", stored.Name)
	assert.Equal(t, []string{"BRCC1", "RNF53"}, stored.AliasNames())
	assert.Equal(t, genes[0].HG38, stored.HG38.Genomic())
	assert.Equal(t, genes[0].HG19, stored.HG19.Genomic())
	require.Len(t, stored.Diseases, 2)
	assert.Equal(t, "breast cancer", stored.Diseases[0].Name)
}

func TestSaveGenesKeepsKnownPositionWhenLaterRunLacksIt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log, _ := test.NewNullLogger()
	p := NewPersister(db, log)

	full := brca1()
	require.Empty(t, p.SaveGenes(ctx, []models.CanonicalGene{full}).Errors)

	partial := brca1()
	partial.HG19 = models.GenomicPosition{}
	partial.Aliases = []string{}
	partial.Diseases = []string{"breast cancer", "fanconi anemia"}
	require.Empty(t, p.SaveGenes(ctx, []models.CanonicalGene{partial}).Errors)

	stored, err := GetGene(ctx, db, "HGNC:1100")
	require.NoError(t, err)
	assert.Equal(t, full.HG19, stored.HG19.Genomic())
	assert.Len(t, stored.Aliases, 2)
	assert.Len(t, stored.Diseases, 3)

	genes, err := GenesForDisease(ctx, db, "fanconi anemia")
	require.NoError(t, err)
	require.Len(t, genes, 1)
	assert.Equal(t, "HGNC:1100", genes[0].HGNCID)
	assert.Len(t, genes[0].AliasNames(), 2)
}

func TestSaveGenesContinuesAfterRowFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log, hook := test.NewNullLogger()
	p := NewPersister(db, log)

	bad := models.CanonicalGene{HGNCID: "HGNC:1", Aliases: []string{}, Diseases: []string{"flu"}}
	report := p.SaveGenes(ctx, []models.CanonicalGene{bad, brca1()})

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "gene", report.Errors[0].Op)
	assert.Equal(t, 1, report.Genes)
	assert.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, 2, count(t, db, (*models.GeneDisease)(nil)))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	runs := NewRunLog(db)

	run := &models.PipelineRun{RunID: "run-1", DocumentID: "38790019", Status: models.RunRunning, StartTime: time.Now()}
	require.NoError(t, runs.Start(ctx, run))

	run.GenesResolved = 3
	run.GenesUnresolved = models.StringArray{"FOO"}
	run.Finish(models.RunSucceeded)
	require.NoError(t, runs.Finish(ctx, run))

	stored, err := GetRun(ctx, db, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, stored.Status)
	assert.Equal(t, 3, stored.GenesResolved)
	assert.Equal(t, models.StringArray{"FOO"}, stored.GenesUnresolved)
	assert.NotNil(t, stored.EndTime)
}
