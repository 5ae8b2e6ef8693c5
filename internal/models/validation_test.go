package models

import "testing"

func TestCanonicalGeneValidate(t *testing.T) {
	valid := &CanonicalGene{HGNCID: "HGNC:11998", Name: "tumor protein p53", Aliases: []string{}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid gene, got error: %v", err)
	}

	if err := (&CanonicalGene{}).Validate(); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if err := (&CanonicalGene{HGNCID: "11998", Aliases: []string{}}).Validate(); err == nil {
		t.Fatalf("expected error for unprefixed id")
	}
	if err := (&CanonicalGene{HGNCID: "HGNC:1"}).Validate(); err == nil {
		t.Fatalf("expected error for nil aliases")
	}
}

func TestGenomicPositionIsSet(t *testing.T) {
	var p GenomicPosition
	if p.IsSet() {
		t.Fatalf("zero position must be unset")
	}
	if got := p.String(); got != "unset" {
		t.Fatalf("unexpected string: %s", got)
	}

	p = GenomicPosition{Chromosome: "17", Start: 7661779, End: 7687538, Strand: "-"}
	if !p.IsSet() {
		t.Fatalf("expected position to be set")
	}
	if got := p.String(); got != "chr17:7661779-7687538:-" {
		t.Fatalf("unexpected string: %s", got)
	}
}

func TestPassageIsConsumed(t *testing.T) {
	cases := []struct {
		p    Passage
		want bool
	}{
		{Passage{Section: SectionAbstract, Kind: PassageAbstract}, true},
		{Passage{Section: SectionResults, Kind: PassageParagraph}, true},
		{Passage{Section: "METHODS", Kind: PassageParagraph}, false},
		{Passage{Section: SectionIntro, Kind: "title_1"}, false},
		{Passage{}, false},
	}
	for _, tc := range cases {
		if got := tc.p.IsConsumed(); got != tc.want {
			t.Fatalf("%+v: expected %v, got %v", tc.p, tc.want, got)
		}
	}
}

func TestPositionRoundTrip(t *testing.T) {
	g := GenomicPosition{Chromosome: "X", Start: 10, End: 20}
	row := NewPosition(AssemblyHG19, g)
	if row.Assembly != AssemblyHG19 {
		t.Fatalf("unexpected assembly: %s", row.Assembly)
	}
	if row.Genomic() != g {
		t.Fatalf("expected %v, got %v", g, row.Genomic())
	}

	var missing *Position
	if missing.Genomic().IsSet() {
		t.Fatalf("nil row must convert to unset position")
	}
}

func TestStringArrayScan(t *testing.T) {
	var s StringArray
	if err := s.Scan(`["BRCA1","TP53"]`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if len(s) != 2 || s[1] != "TP53" {
		t.Fatalf("unexpected value: %v", s)
	}
	if err := s.Scan([]byte(`[]`)); err != nil || len(s) != 0 {
		t.Fatalf("scan bytes: %v %v", s, err)
	}
	if err := s.Scan(nil); err != nil || s == nil {
		t.Fatalf("nil scan must yield empty array")
	}
	if err := s.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported type")
	}

	v, err := StringArray{}.Value()
	if err != nil || v != "[]" {
		t.Fatalf("unexpected empty value: %v %v", v, err)
	}
}

func TestGeneAliasNames(t *testing.T) {
	g := &Gene{HGNCID: "HGNC:1100", Name: "BRCA1 DNA repair associated", Aliases: []*GeneAlias{{AliasName: "RNF53"}, {AliasName: "BRCC1"}}}
	if err := g.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := g.AliasNames()
	if len(names) != 2 || names[0] != "RNF53" {
		t.Fatalf("unexpected aliases: %v", names)
	}
}
