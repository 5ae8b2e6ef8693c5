// Package reconcile turns per-passage annotation payloads into a gene to
// co-occurring disease mapping.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/models"
)

// DiseaseConfidenceThreshold is the exclusive lower bound on disease confidence.
const DiseaseConfidenceThreshold = 0.99

const source = "bern2"

type rawAnnotation struct {
	Mention *string  `json:"mention"`
	Obj     *string  `json:"obj"`
	Prob    *float64 `json:"prob"`
}

type rawPayload struct {
	Annotations *[]rawAnnotation `json:"annotations"`
}

// Mentions decodes the gene and disease records of one payload. Records of
// other object kinds are dropped.
func Mentions(index int, payload []byte) ([]models.RawMention, error) {
	fail := func(err error) error {
		return &errs.ParseError{Source: source, Passage: index, Err: err}
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fail(fmt.Errorf("decode payload: %w", err))
	}
	if raw.Annotations == nil {
		return nil, fail(errors.New("missing annotations"))
	}

	out := make([]models.RawMention, 0, len(*raw.Annotations))
	for i, a := range *raw.Annotations {
		if a.Obj == nil {
			return nil, fail(fmt.Errorf("annotation %d: missing obj", i))
		}
		kind := models.EntityKind(*a.Obj)
		if kind != models.EntityGene && kind != models.EntityDisease {
			continue
		}
		if a.Mention == nil {
			return nil, fail(fmt.Errorf("annotation %d: missing mention", i))
		}
		m := models.RawMention{SurfaceForm: *a.Mention, Kind: kind}
		switch {
		case a.Prob != nil:
			m.Confidence = *a.Prob
		case kind == models.EntityDisease:
			return nil, fail(fmt.Errorf("annotation %d: missing prob", i))
		}
		out = append(out, m)
	}
	return out, nil
}

// Accepted reports whether a mention contributes to the mapping.
func Accepted(m models.RawMention) bool {
	switch m.Kind {
	case models.EntityGene:
		return true
	case models.EntityDisease:
		return m.Confidence > DiseaseConfidenceThreshold
	default:
		return false
	}
}

// Partial is the accepted content of a single passage. Every gene co-occurs
// with every disease.
type Partial struct {
	index    int
	genes    []string
	diseases []string
}

// ParsePassage decodes one payload into its accepted genes and diseases.
func ParsePassage(index int, payload []byte) (Partial, error) {
	mentions, err := Mentions(index, payload)
	if err != nil {
		return Partial{}, err
	}

	genes := map[string]struct{}{}
	diseases := map[string]struct{}{}
	for _, m := range mentions {
		if !Accepted(m) {
			continue
		}
		if m.Kind == models.EntityGene {
			genes[m.SurfaceForm] = struct{}{}
		} else {
			diseases[m.SurfaceForm] = struct{}{}
		}
	}
	return Partial{index: index, genes: sortedKeys(genes), diseases: sortedKeys(diseases)}, nil
}

// Index is the passage position the partial was parsed from.
func (p Partial) Index() int { return p.index }

// Genes returns the accepted gene surface forms in sorted order.
func (p Partial) Genes() []string { return append([]string(nil), p.genes...) }

// Diseases returns the accepted disease surface forms in sorted order.
func (p Partial) Diseases() []string { return append([]string(nil), p.diseases...) }

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
