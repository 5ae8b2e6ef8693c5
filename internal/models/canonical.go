package models

import (
	"errors"
	"fmt"
	"strings"
)

// GenomicPosition is a gene locus in one reference build. The zero value means
// the registry had no data for that build.
type GenomicPosition struct {
	Chromosome string `json:"chr,omitempty"`
	Start      int64  `json:"start,omitempty"`
	End        int64  `json:"end,omitempty"`
	Strand     string `json:"strand,omitempty"`
}

// IsSet reports whether any coordinate field was populated.
func (p GenomicPosition) IsSet() bool {
	return p.Chromosome != "" || p.Start != 0 || p.End != 0
}

func (p GenomicPosition) String() string {
	if !p.IsSet() {
		return "unset"
	}
	s := fmt.Sprintf("chr%s:%d-%d", p.Chromosome, p.Start, p.End)
	if p.Strand != "" {
		s += ":" + p.Strand
	}
	return s
}

// CanonicalGene is a gene mention resolved against the nomenclature registry.
type CanonicalGene struct {
	HGNCID   string          `json:"hgnc_id"`
	Name     string          `json:"name"`
	Aliases  []string        `json:"alias"`
	HG38     GenomicPosition `json:"hg38_pos"`
	HG19     GenomicPosition `json:"hg19_pos"`
	Diseases []string        `json:"diseases"`
	Mentions []string        `json:"mentions,omitempty"`
}

// Validate checks that the record carries a usable identifier.
func (g *CanonicalGene) Validate() error {
	if g.HGNCID == "" {
		return errors.New("hgnc_id is required")
	}
	if !strings.HasPrefix(g.HGNCID, "HGNC:") {
		return fmt.Errorf("hgnc_id %q must start with HGNC:", g.HGNCID)
	}
	if g.Aliases == nil {
		return errors.New("aliases must not be nil")
	}
	return nil
}

// Position returns the locus for the given build.
func (g *CanonicalGene) Position(build Assembly) GenomicPosition {
	if build == AssemblyHG19 {
		return g.HG19
	}
	return g.HG38
}
