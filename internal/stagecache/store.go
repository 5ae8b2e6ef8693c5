// Package stagecache persists intermediate pipeline artifacts so a run can
// resume without calling the upstream services again.
package stagecache

import (
	"context"
	"fmt"
	"regexp"
)

// Stage names one cached artifact.
type Stage string

const (
	StagePassages       Stage = "passages"
	StageAnnotations    Stage = "annotations"
	StageReconciliation Stage = "reconciliation"
)

// Store saves and loads JSON-encodable artifacts keyed by document and stage.
type Store interface {
	// Get decodes the artifact into v. ok is false on a miss.
	Get(ctx context.Context, pmid string, stage Stage, v any) (ok bool, err error)
	Put(ctx context.Context, pmid string, stage Stage, v any) error
}

var safeKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Key returns "<pmid>/<stage>".
func Key(pmid string, stage Stage) (string, error) {
	if !safeKey.MatchString(pmid) || pmid == "." || pmid == ".." {
		return "", fmt.Errorf("stagecache: invalid document id %q", pmid)
	}
	if !safeKey.MatchString(string(stage)) {
		return "", fmt.Errorf("stagecache: invalid stage %q", stage)
	}
	return pmid + "/" + string(stage), nil
}
