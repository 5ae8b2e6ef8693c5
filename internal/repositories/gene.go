package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mkoziy/genome/extractor/internal/models"
)

// UpsertPosition stores a locus and returns its row id. An unset position
// stores nothing and returns a nil id.
func UpsertPosition(ctx context.Context, db bun.IDB, build models.Assembly, pos models.GenomicPosition) (*int64, error) {
	if !pos.IsSet() {
		return nil, nil
	}
	row := models.NewPosition(build, pos)

	unlock := writeLocks.lock(fmt.Sprintf("position:%s:%s", build, pos))
	defer unlock()

	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (assembly, chromosome, start_pos, end_pos, strand) DO UPDATE").
		Set("assembly = EXCLUDED.assembly").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if row.ID == 0 {
		err = db.NewSelect().
			Model(row).
			Column("id").
			Where("assembly = ?", row.Assembly).
			Where("chromosome = ?", row.Chromosome).
			Where("start_pos = ?", row.Start).
			Where("end_pos = ?", row.End).
			Where("strand = ?", row.Strand).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
	}
	return &row.ID, nil
}

// UpsertGene creates the gene if absent, otherwise refreshes its name and any
// position reference that is known now. Aliases are added, never removed.
func UpsertGene(ctx context.Context, db bun.IDB, gene *models.CanonicalGene, hg38ID, hg19ID *int64) error {
	row := &models.Gene{
		HGNCID:    gene.HGNCID,
		Name:      gene.Name,
		HG38PosID: hg38ID,
		HG19PosID: hg19ID,
	}
	if err := row.Validate(); err != nil {
		return err
	}

	unlock := writeLocks.lock("gene:" + gene.HGNCID)
	defer unlock()

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (hgnc_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return err
		}

		if n, _ := res.RowsAffected(); n == 0 {
			upd := tx.NewUpdate().
				Model((*models.Gene)(nil)).
				Set("name = ?", row.Name).
				Where("hgnc_id = ?", row.HGNCID)
			if hg38ID != nil {
				upd = upd.Set("hg38_pos_id = ?", *hg38ID)
			}
			if hg19ID != nil {
				upd = upd.Set("hg19_pos_id = ?", *hg19ID)
			}
			if _, err := upd.Exec(ctx); err != nil {
				return err
			}
		}

		if len(gene.Aliases) == 0 {
			return nil
		}
		aliases := make([]*models.GeneAlias, 0, len(gene.Aliases))
		for _, name := range gene.Aliases {
			aliases = append(aliases, &models.GeneAlias{GeneID: gene.HGNCID, AliasName: name})
		}
		_, err = tx.NewInsert().
			Model(&aliases).
			On("CONFLICT (gene_id, alias_name) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		return err
	})
}

// UpsertDisease finds or creates a disease by name and returns its id.
func UpsertDisease(ctx context.Context, db bun.IDB, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("disease name is required")
	}
	row := &models.Disease{Name: name}

	unlock := writeLocks.lock("disease:" + name)
	defer unlock()

	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	if row.ID == 0 {
		if err := db.NewSelect().Model(row).Column("id").Where("name = ?", name).Scan(ctx); err != nil {
			return 0, err
		}
	}
	return row.ID, nil
}

// LinkGeneDisease records the association; duplicates are ignored.
func LinkGeneDisease(ctx context.Context, db bun.IDB, hgncID string, diseaseID int64) error {
	unlock := writeLocks.lock(fmt.Sprintf("link:%s:%d", hgncID, diseaseID))
	defer unlock()

	_, err := db.NewInsert().
		Model(&models.GeneDisease{GeneID: hgncID, DiseaseID: diseaseID}).
		On("CONFLICT (gene_id, disease_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	return err
}

// GetGene fetches a gene by HGNC id with positions, aliases and diseases.
func GetGene(ctx context.Context, db bun.IDB, hgncID string) (*models.Gene, error) {
	gene := new(models.Gene)
	err := db.NewSelect().
		Model(gene).
		Where("g.hgnc_id = ?", hgncID).
		Relation("HG38").
		Relation("HG19").
		Relation("Aliases", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ga.alias_name")
		}).
		Relation("Diseases", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("d.name")
		}).
		Scan(ctx)

	return gene, err
}

// GenesForDisease lists genes linked to a disease name with their aliases.
func GenesForDisease(ctx context.Context, db bun.IDB, disease string) ([]*models.Gene, error) {
	var genes []*models.Gene
	err := db.NewSelect().
		Model(&genes).
		Join("JOIN gene_diseases AS gd ON gd.gene_id = g.hgnc_id").
		Join("JOIN diseases AS d ON d.id = gd.disease_id").
		Where("d.name = ?", disease).
		Relation("Aliases", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ga.alias_name")
		}).
		OrderExpr("g.hgnc_id ASC").
		Scan(ctx)

	return genes, err
}
