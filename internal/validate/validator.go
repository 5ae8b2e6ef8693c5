// Package validate resolves gene surface forms to canonical registry records
// enriched with hg38 and hg19 coordinates.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/models"
	"github.com/mkoziy/genome/extractor/internal/sources/hgnc"
)

// Registry looks up approved gene symbols.
type Registry interface {
	FetchSymbol(ctx context.Context, symbol string) (*hgnc.Result, error)
}

// Coordinates looks up the locus of a symbol in one reference build.
type Coordinates interface {
	GenomicPosition(ctx context.Context, symbol string, build models.Assembly) (models.GenomicPosition, error)
}

// Options tune the validator.
type Options struct {
	Workers     int
	GeneTimeout time.Duration
	CacheSize   int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.GeneTimeout <= 0 {
		o.GeneTimeout = 60 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 1024
	}
	return o
}

// memoEntry is a deterministic registry outcome for one symbol.
type memoEntry struct {
	gene     models.CanonicalGene
	notFound *errs.NotFoundError
}

// Validator is safe for concurrent use.
type Validator struct {
	registry Registry
	coords   Coordinates
	memo     *lru.Cache[string, memoEntry]
	opts     Options
	log      logrus.FieldLogger
}

// New creates a validator.
func New(registry Registry, coords Coordinates, opts Options, log logrus.FieldLogger) (*Validator, error) {
	opts = opts.withDefaults()
	memo, err := lru.New[string, memoEntry](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}
	return &Validator{registry: registry, coords: coords, memo: memo, opts: opts, log: log}, nil
}

// Resolve returns the canonical record for symbol carrying a sorted copy of
// diseases. A symbol with zero or several registry matches fails with an
// error matching errs.ErrNotFound. Coordinate lookup failures leave the
// affected position unset.
func (v *Validator) Resolve(ctx context.Context, symbol string, diseases []string) (*models.CanonicalGene, error) {
	entry, ok := v.memo.Get(symbol)
	if !ok {
		var (
			complete bool
			err      error
		)
		entry, complete, err = v.lookup(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if complete {
			v.memo.Add(symbol, entry)
		}
	}
	if entry.notFound != nil {
		return nil, fmt.Errorf("resolve %q: %w", symbol, entry.notFound)
	}

	g := entry.gene
	g.Aliases = append([]string{}, g.Aliases...)
	g.Diseases = dedupSorted(diseases)
	g.Mentions = []string{symbol}
	return &g, nil
}

// lookup reports complete=false when a coordinate lookup failed, so the
// degraded record is not memoized.
func (v *Validator) lookup(ctx context.Context, symbol string) (memoEntry, bool, error) {
	res, err := v.registry.FetchSymbol(ctx, symbol)
	if err != nil {
		return memoEntry{}, false, fmt.Errorf("resolve %q: %w", symbol, err)
	}
	if res.NumFound != 1 || len(res.Docs) != 1 {
		return memoEntry{notFound: &errs.NotFoundError{Symbol: symbol, NumFound: res.NumFound}}, true, nil
	}
	rec := res.Docs[0]
	aliases := rec.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	gene := models.CanonicalGene{HGNCID: rec.HGNCID, Name: rec.Name, Aliases: aliases}
	if err := gene.Validate(); err != nil {
		return memoEntry{}, false, fmt.Errorf("resolve %q: %w", symbol,
			&errs.ParseError{Source: "hgnc", Passage: -1, Err: err})
	}

	var (
		wg         sync.WaitGroup
		hg38, hg19 models.GenomicPosition
		ok38, ok19 bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		hg38, ok38 = v.position(ctx, symbol, models.AssemblyHG38)
	}()
	go func() {
		defer wg.Done()
		hg19, ok19 = v.position(ctx, symbol, models.AssemblyHG19)
	}()
	wg.Wait()

	gene.HG38, gene.HG19 = hg38, hg19
	return memoEntry{gene: gene}, ok38 && ok19, nil
}

func (v *Validator) position(ctx context.Context, symbol string, build models.Assembly) (models.GenomicPosition, bool) {
	pos, err := v.coords.GenomicPosition(ctx, symbol, build)
	if err != nil {
		v.log.WithError(err).WithFields(logrus.Fields{"symbol": symbol, "build": build}).Warn("coordinate lookup failed, position left unset")
		return models.GenomicPosition{}, false
	}
	return pos, true
}

// Batch is the outcome of validating a whole mapping.
type Batch struct {
	// Genes is sorted by HGNC id; symbols resolving to the same id are merged.
	Genes []models.CanonicalGene
	// Unresolved lists symbols without a unique registry match, sorted.
	Unresolved []string
	// Failed maps a symbol to the error that stopped its resolution.
	Failed map[string]error
}

// ResolveAll validates every gene of mapping independently. One gene failing
// never affects another.
func (v *Validator) ResolveAll(ctx context.Context, mapping map[string][]string) *Batch {
	symbols := make([]string, 0, len(mapping))
	for s := range mapping {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	type outcome struct {
		gene *models.CanonicalGene
		err  error
	}
	outcomes := make([]outcome, len(symbols))

	// Workers never return an error so one failure cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(v.opts.Workers)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			gctx, cancel := context.WithTimeout(ctx, v.opts.GeneTimeout)
			defer cancel()
			gene, err := v.Resolve(gctx, symbol, mapping[symbol])
			outcomes[i] = outcome{gene: gene, err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{Unresolved: []string{}, Failed: map[string]error{}}
	byID := map[string]*models.CanonicalGene{}
	for i, symbol := range symbols {
		o := outcomes[i]
		log := v.log.WithField("symbol", symbol)
		switch {
		case errors.Is(o.err, errs.ErrNotFound):
			log.WithError(o.err).Info("gene unresolved")
			batch.Unresolved = append(batch.Unresolved, symbol)
		case o.err != nil:
			log.WithError(o.err).Warn("gene validation failed")
			batch.Failed[symbol] = o.err
		default:
			merge(byID, o.gene)
		}
	}

	batch.Genes = make([]models.CanonicalGene, 0, len(byID))
	for _, g := range byID {
		batch.Genes = append(batch.Genes, *g)
	}
	sort.Slice(batch.Genes, func(i, j int) bool { return batch.Genes[i].HGNCID < batch.Genes[j].HGNCID })
	return batch
}

// merge folds g into the record with the same HGNC id. Symbols arrive in
// sorted order so the first symbol's registry data wins.
func merge(byID map[string]*models.CanonicalGene, g *models.CanonicalGene) {
	cur, ok := byID[g.HGNCID]
	if !ok {
		byID[g.HGNCID] = g
		return
	}
	cur.Diseases = dedupSorted(append(cur.Diseases, g.Diseases...))
	cur.Mentions = dedupSorted(append(cur.Mentions, g.Mentions...))
}

func dedupSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
