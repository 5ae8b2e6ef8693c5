package migrations

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoziy/genome/extractor/internal/database"
)

func TestRunMigrationsIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(database.MemoryDSN(t.Name()), false)
	require.NoError(t, err)
	defer db.Close()

	log, hook := test.NewNullLogger()
	require.NoError(t, RunMigrations(ctx, db, log))
	require.NoError(t, RunMigrations(ctx, db, log))

	var infos int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel {
			infos++
		}
	}
	assert.Equal(t, 1, infos, "second run must find nothing to migrate")

	for _, table := range []string{"genes", "positions", "gene_aliases", "diseases", "gene_diseases", "pipeline_runs"} {
		var n int
		err := db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}
