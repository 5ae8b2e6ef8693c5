package models

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Gene is a persisted canonical gene keyed by its HGNC identifier.
type Gene struct {
	bun.BaseModel `bun:"table:genes,alias:g"`

	HGNCID    string    `bun:"hgnc_id,pk" json:"hgnc_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	HG38PosID *int64    `bun:"hg38_pos_id" json:"hg38_pos_id,omitempty"`
	HG19PosID *int64    `bun:"hg19_pos_id" json:"hg19_pos_id,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	HG38     *Position    `bun:"rel:belongs-to,join:hg38_pos_id=id" json:"hg38,omitempty"`
	HG19     *Position    `bun:"rel:belongs-to,join:hg19_pos_id=id" json:"hg19,omitempty"`
	Aliases  []*GeneAlias `bun:"rel:has-many,join:hgnc_id=gene_id" json:"aliases,omitempty"`
	Diseases []*Disease   `bun:"m2m:gene_diseases,join:Gene=Disease" json:"diseases,omitempty"`
}

// BeforeUpdate stamps updated_at. Model hooks run on a nil receiver, so the
// timestamp is set through the query.
func (*Gene) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	query.Set("updated_at = CURRENT_TIMESTAMP")
	return nil
}

// Validate checks that required gene fields are present.
func (g *Gene) Validate() error {
	if g.HGNCID == "" {
		return errors.New("hgnc_id is required")
	}
	if g.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// AliasNames flattens the loaded alias rows.
func (g *Gene) AliasNames() []string {
	names := make([]string, 0, len(g.Aliases))
	for _, a := range g.Aliases {
		names = append(names, a.AliasName)
	}
	return names
}

// Position is a genomic locus row. All value columns together are unique so
// identical loci share one row.
type Position struct {
	bun.BaseModel `bun:"table:positions,alias:pos"`

	ID         int64    `bun:"id,pk,autoincrement" json:"id"`
	Assembly   Assembly `bun:"assembly,notnull,unique:position_value" json:"assembly"`
	Chromosome string   `bun:"chromosome,notnull,unique:position_value" json:"chr"`
	Start      int64    `bun:"start_pos,notnull,unique:position_value" json:"start"`
	End        int64    `bun:"end_pos,notnull,unique:position_value" json:"end"`
	Strand     string   `bun:"strand,notnull,default:'',unique:position_value" json:"strand,omitempty"`
}

// NewPosition builds a row from a resolved locus.
func NewPosition(build Assembly, p GenomicPosition) *Position {
	return &Position{
		Assembly:   build,
		Chromosome: p.Chromosome,
		Start:      p.Start,
		End:        p.End,
		Strand:     p.Strand,
	}
}

// Genomic converts the row back to the domain value.
func (p *Position) Genomic() GenomicPosition {
	if p == nil {
		return GenomicPosition{}
	}
	return GenomicPosition{Chromosome: p.Chromosome, Start: p.Start, End: p.End, Strand: p.Strand}
}

// GeneAlias is one alternative name of a gene.
type GeneAlias struct {
	bun.BaseModel `bun:"table:gene_aliases,alias:ga"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	GeneID    string `bun:"gene_id,notnull,unique:gene_alias" json:"gene_id"`
	AliasName string `bun:"alias_name,notnull,unique:gene_alias" json:"alias_name"`

	Gene *Gene `bun:"rel:belongs-to,join:gene_id=hgnc_id" json:"-"`
}
