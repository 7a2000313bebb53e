package transcription

import (
	"time"

	"github.com/your-org/mediascribe/internal/domain"
)

const eventTypeRunCompleted = "run.completed"

// RunCompletedEvent is emitted once a run has been exported.
type RunCompletedEvent struct {
	ID          string                    `json:"id"`
	Operation   domain.Operation          `json:"operation"`
	Format      domain.OutputFormat       `json:"format"`
	Language    string                    `json:"language,omitempty"`
	Total       int                       `json:"total"`
	Results     []domain.ProcessingResult `json:"results"`
	Notices     []domain.Notice           `json:"notices"`
	Exports     domain.ExportPaths        `json:"exports"`
	ObjectKeys  []string                  `json:"object_keys,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt time.Time                 `json:"completed_at"`
}
