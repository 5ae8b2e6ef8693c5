package reconcile

import (
	"encoding/json"
	"errors"
	"sort"
)

// Accumulator folds partials by set union. It is not safe for concurrent use.
type Accumulator struct {
	genes  map[string]map[string]struct{}
	merged int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{genes: map[string]map[string]struct{}{}}
}

// Add merges one passage. Existing associations are never removed.
func (a *Accumulator) Add(p Partial) {
	a.merged++
	for _, g := range p.genes {
		set, ok := a.genes[g]
		if !ok {
			set = map[string]struct{}{}
			a.genes[g] = set
		}
		for _, d := range p.diseases {
			set[d] = struct{}{}
		}
	}
}

// Result snapshots the current state.
func (a *Accumulator) Result() *Result {
	m := make(map[string][]string, len(a.genes))
	for g, set := range a.genes {
		m[g] = sortedKeys(set)
	}
	return &Result{mapping: m, passages: a.merged}
}

// Result is an immutable gene to disease mapping.
type Result struct {
	mapping  map[string][]string
	passages int
}

// NewResult builds a result from an existing mapping, such as one read back
// from a stage cache.
func NewResult(mapping map[string][]string) *Result {
	acc := NewAccumulator()
	for g, ds := range mapping {
		set := map[string]struct{}{}
		for _, d := range ds {
			set[d] = struct{}{}
		}
		acc.genes[g] = set
	}
	return acc.Result()
}

// Genes returns the distinct gene surface forms in sorted order.
func (r *Result) Genes() []string {
	out := make([]string, 0, len(r.mapping))
	for g := range r.mapping {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Diseases returns the sorted diseases co-occurring with gene.
func (r *Result) Diseases(gene string) []string {
	return append([]string{}, r.mapping[gene]...)
}

// Mapping returns a copy of the full mapping.
func (r *Result) Mapping() map[string][]string {
	out := make(map[string][]string, len(r.mapping))
	for g, ds := range r.mapping {
		out[g] = append([]string{}, ds...)
	}
	return out
}

// Passages is the number of passages merged.
func (r *Result) Passages() int { return r.passages }

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.mapping)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = *NewResult(m)
	return nil
}

// Reconcile parses and merges every payload. Payloads that fail to parse are
// left out of the result and reported together in the returned error as
// *errs.ParseError values carrying the passage index.
func Reconcile(payloads []json.RawMessage) (*Result, error) {
	acc := NewAccumulator()
	var failures []error
	for i, payload := range payloads {
		p, err := ParsePassage(i, payload)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		acc.Add(p)
	}
	return acc.Result(), errors.Join(failures...)
}
