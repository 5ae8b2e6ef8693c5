package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PipelineRun tracks one extraction run and its outcome.
type PipelineRun struct {
	bun.BaseModel `bun:"table:pipeline_runs,alias:pr"`

	ID              int64       `bun:"id,pk,autoincrement" json:"id"`
	RunID           string      `bun:"run_id,unique,notnull" json:"run_id"`
	DocumentID      string      `bun:"document_id,notnull" json:"document_id"`
	StartTime       time.Time   `bun:"start_time,notnull" json:"start_time"`
	EndTime         *time.Time  `bun:"end_time" json:"end_time,omitempty"`
	Status          RunStatus   `bun:"status,notnull" json:"status"`
	PassagesCount   int         `bun:"passages_count,default:0" json:"passages_count"`
	SymbolsCount    int         `bun:"symbols_count,default:0" json:"symbols_count"`
	GenesResolved   int         `bun:"genes_resolved,default:0" json:"genes_resolved"`
	GenesUnresolved StringArray `bun:"genes_unresolved,type:json" json:"genes_unresolved"`
	ErrorsCount     int         `bun:"errors_count,default:0" json:"errors_count"`
	ErrorLog        *string     `bun:"error_log" json:"error_log,omitempty"`
	ConfigSnapshot  *string     `bun:"config_snapshot" json:"config_snapshot,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Finish stamps the end time and final status.
func (r *PipelineRun) Finish(status RunStatus) {
	now := time.Now()
	r.EndTime = &now
	r.Status = status
}

// Duration returns the elapsed run time, or zero while running.
func (r *PipelineRun) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
