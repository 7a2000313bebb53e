package domain

import "time"

// RunStatus tracks the lifecycle of one batch run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// ExportPaths lists the files written for a completed run.
type ExportPaths struct {
	Table      string `json:"table,omitempty"`
	Text       string `json:"text,omitempty"`
	Individual string `json:"individual,omitempty"`
}

// Run is a point-in-time snapshot of a batch run.
type Run struct {
	ID         string             `json:"id"`
	Status     RunStatus          `json:"status"`
	Request    ProcessingRequest  `json:"request"`
	Total      int                `json:"total"`
	Completed  int                `json:"completed"`
	Progress   float64            `json:"progress"`
	Results    []ProcessingResult `json:"results"`
	Notices    []Notice           `json:"notices"`
	Exports    ExportPaths        `json:"exports"`
	StartedAt  time.Time          `json:"started_at,omitempty"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}
