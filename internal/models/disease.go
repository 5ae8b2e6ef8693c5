package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Disease is created lazily the first time a disease name is linked to a gene.
type Disease struct {
	bun.BaseModel `bun:"table:diseases,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,unique,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// GeneDisease links a gene to a co-mentioned disease.
type GeneDisease struct {
	bun.BaseModel `bun:"table:gene_diseases,alias:gd"`

	GeneID    string    `bun:"gene_id,pk" json:"gene_id"`
	DiseaseID int64     `bun:"disease_id,pk" json:"disease_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Gene    *Gene    `bun:"rel:belongs-to,join:gene_id=hgnc_id" json:"-"`
	Disease *Disease `bun:"rel:belongs-to,join:disease_id=id" json:"-"`
}
