package bioc

import "github.com/mkoziy/genome/extractor/internal/models"

const (
	infonType    = "type"
	infonSection = "section_type"
)

// Segment returns the annotatable passages of every document in order.
// Passages missing either the type or section_type infon are skipped.
func Segment(coll *Collection) []models.Passage {
	if coll == nil {
		return nil
	}
	var out []models.Passage
	for _, doc := range coll.Documents {
		for _, raw := range doc.Passages {
			kind, ok := raw.Infon(infonType)
			if !ok {
				continue
			}
			section, ok := raw.Infon(infonSection)
			if !ok {
				continue
			}
			p := models.Passage{
				Text:    raw.Text,
				Section: models.SectionKind(section),
				Kind:    models.PassageKind(kind),
				Offset:  raw.Offset,
			}
			if p.IsConsumed() {
				out = append(out, p)
			}
		}
	}
	return out
}
