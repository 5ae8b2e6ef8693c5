package migrations

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/mkoziy/genome/extractor/internal/models"
)

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.Add(migrate.Migration{
		Name:    "20250601000001",
		Comment: "create_tables",
		Up:      createTables,
		Down:    dropTables,
	})
	Migrations.Add(migrate.Migration{
		Name:    "20250601000002",
		Comment: "indexes",
		Up:      createIndexes,
		Down:    dropIndexes,
	})
}

type tableSpec struct {
	model       interface{}
	foreignKeys []string
}

// Parents first so foreign keys resolve.
var tables = []tableSpec{
	{model: (*models.Position)(nil)},
	{model: (*models.Disease)(nil)},
	{model: (*models.Gene)(nil), foreignKeys: []string{
		`("hg38_pos_id") REFERENCES "positions" ("id") ON DELETE SET NULL`,
		`("hg19_pos_id") REFERENCES "positions" ("id") ON DELETE SET NULL`,
	}},
	{model: (*models.GeneAlias)(nil), foreignKeys: []string{
		`("gene_id") REFERENCES "genes" ("hgnc_id") ON DELETE CASCADE`,
	}},
	{model: (*models.GeneDisease)(nil), foreignKeys: []string{
		`("gene_id") REFERENCES "genes" ("hgnc_id") ON DELETE CASCADE`,
		`("disease_id") REFERENCES "diseases" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.PipelineRun)(nil)},
}

func createTables(ctx context.Context, db *bun.DB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func dropTables(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

var indexes = map[string]string{
	"idx_genes_name":            "CREATE INDEX IF NOT EXISTS idx_genes_name ON genes(name)",
	"idx_gene_aliases_alias":    "CREATE INDEX IF NOT EXISTS idx_gene_aliases_alias ON gene_aliases(alias_name)",
	"idx_gene_diseases_disease": "CREATE INDEX IF NOT EXISTS idx_gene_diseases_disease ON gene_diseases(disease_id)",
	"idx_positions_locus":       "CREATE INDEX IF NOT EXISTS idx_positions_locus ON positions(assembly, chromosome, start_pos)",
	"idx_pipeline_runs_doc":     "CREATE INDEX IF NOT EXISTS idx_pipeline_runs_doc ON pipeline_runs(document_id)",
}

func createIndexes(ctx context.Context, db *bun.DB) error {
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func dropIndexes(ctx context.Context, db *bun.DB) error {
	for name := range indexes {
		if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+name); err != nil {
			return err
		}
	}
	return nil
}

// RunMigrations runs all pending migrations.
func RunMigrations(ctx context.Context, db *bun.DB, log logrus.FieldLogger) error {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		log.Debug("no new migrations to run")
		return nil
	}

	log.WithField("group", group.String()).Info("database migrated")
	return nil
}
