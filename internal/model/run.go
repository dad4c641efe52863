package model

import "time"

// RunStatus is the lifecycle state of a recorded batch run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted record of one archival batch.
type Run struct {
	ID        string       `json:"id"`
	DestRoot  string       `json:"dest_root"`
	Status    RunStatus    `json:"status"`
	FileCount int          `json:"file_count"`
	Report    *BatchReport `json:"report,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
