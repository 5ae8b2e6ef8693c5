package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/genome/extractor/internal/models"
)

// InsertRun records the start of a pipeline run.
func InsertRun(ctx context.Context, db bun.IDB, run *models.PipelineRun) error {
	_, err := db.NewInsert().Model(run).Exec(ctx)
	return err
}

// FinishRun stores the final counters and status of a run.
func FinishRun(ctx context.Context, db bun.IDB, run *models.PipelineRun) error {
	_, err := db.NewUpdate().
		Model(run).
		Column("end_time", "status", "passages_count", "symbols_count", "genes_resolved", "genes_unresolved", "errors_count", "error_log").
		Where("run_id = ?", run.RunID).
		Exec(ctx)
	return err
}

// GetRun fetches a run by its run id.
func GetRun(ctx context.Context, db bun.IDB, runID string) (*models.PipelineRun, error) {
	run := new(models.PipelineRun)
	err := db.NewSelect().Model(run).Where("run_id = ?", runID).Scan(ctx)
	return run, err
}

// RunLog records pipeline runs in the pipeline_runs table.
type RunLog struct {
	db bun.IDB
}

// NewRunLog creates a run log over db.
func NewRunLog(db bun.IDB) *RunLog {
	return &RunLog{db: db}
}

func (l *RunLog) Start(ctx context.Context, run *models.PipelineRun) error {
	return InsertRun(ctx, l.db, run)
}

func (l *RunLog) Finish(ctx context.Context, run *models.PipelineRun) error {
	return FinishRun(ctx, l.db, run)
}
