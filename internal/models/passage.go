package models

// Passage is a section-tagged span of article text.
type Passage struct {
	Text    string      `json:"text"`
	Section SectionKind `json:"section_type"`
	Kind    PassageKind `json:"type"`
	Offset  int         `json:"offset"`
}

// RawMention is one entity recognized in a passage.
type RawMention struct {
	SurfaceForm string     `json:"mention"`
	Kind        EntityKind `json:"obj"`
	Confidence  float64    `json:"prob"`
}

var consumedSections = map[SectionKind]bool{
	SectionAbstract:   true,
	SectionIntro:      true,
	SectionResults:    true,
	SectionDiscussion: true,
	SectionConclusion: true,
}

var consumedKinds = map[PassageKind]bool{
	PassageAbstract:  true,
	PassageParagraph: true,
}

// IsConsumed reports whether the passage belongs to a section the pipeline annotates.
func (p Passage) IsConsumed() bool {
	return consumedKinds[p.Kind] && consumedSections[p.Section]
}
