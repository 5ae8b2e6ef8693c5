package repositories

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/models"
)

// SaveReport summarizes one SaveGenes call.
type SaveReport struct {
	Genes    int
	Diseases int
	Links    int
	Errors   []*errs.PersistenceError
}

// Persister writes canonical genes and their disease links. A failed row is
// logged and recorded in the report; the remaining rows are still written.
type Persister struct {
	db  bun.IDB
	log logrus.FieldLogger
}

// NewPersister creates a persister over db.
func NewPersister(db bun.IDB, log logrus.FieldLogger) *Persister {
	return &Persister{db: db, log: log}
}

// SaveGenes upserts every gene with its positions, aliases, diseases and links.
func (p *Persister) SaveGenes(ctx context.Context, genes []models.CanonicalGene) SaveReport {
	var report SaveReport
	diseaseIDs := make(map[string]int64)

	for i := range genes {
		gene := &genes[i]
		log := p.log.WithField("hgnc_id", gene.HGNCID)

		hg38ID := p.position(ctx, gene, models.AssemblyHG38, &report)
		hg19ID := p.position(ctx, gene, models.AssemblyHG19, &report)

		if err := UpsertGene(ctx, p.db, gene, hg38ID, hg19ID); err != nil {
			p.fail(log, &report, "gene", gene.HGNCID, err)
			// Links would violate the gene foreign key.
			continue
		}
		report.Genes++

		for _, name := range gene.Diseases {
			id, ok := diseaseIDs[name]
			if !ok {
				var err error
				id, err = UpsertDisease(ctx, p.db, name)
				if err != nil {
					p.fail(log, &report, "disease", name, err)
					continue
				}
				diseaseIDs[name] = id
				report.Diseases++
			}

			if err := LinkGeneDisease(ctx, p.db, gene.HGNCID, id); err != nil {
				p.fail(log, &report, "gene_disease", gene.HGNCID+"/"+name, err)
				continue
			}
			report.Links++
		}
	}
	return report
}

func (p *Persister) position(ctx context.Context, gene *models.CanonicalGene, build models.Assembly, report *SaveReport) *int64 {
	pos := gene.Position(build)
	id, err := UpsertPosition(ctx, p.db, build, pos)
	if err != nil {
		p.fail(p.log.WithField("hgnc_id", gene.HGNCID), report, "position", string(build)+" "+pos.String(), err)
		return nil
	}
	return id
}

func (p *Persister) fail(log logrus.FieldLogger, report *SaveReport, op, key string, err error) {
	perr := &errs.PersistenceError{Op: op, Key: key, Err: err}
	report.Errors = append(report.Errors, perr)
	log.WithError(err).WithField("op", op).Warn("persist failed, continuing")
}
