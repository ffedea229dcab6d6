package pipeline

import "time"

// Task status values reported back to the intake coordinator.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskOrder is the payload of a task_assignment envelope: one announcement
// handed from the intake coordinator to the task coordinator.
type TaskOrder struct {
	Announcement Announcement `json:"announcement"`
	Priority     int          `json:"priority"`
	AssignedAt   time.Time    `json:"assigned_at"`
}

// EnrichmentResult is the payload of a content_generated envelope. Fallback
// marks content built without the LLM after a generation failure.
type EnrichmentResult struct {
	TaskID   string           `json:"task_id"`
	Content  *EnrichedContent `json:"content"`
	Fallback bool             `json:"fallback,omitempty"`
}

// PostOrder is the payload of a post_request envelope. TaskID must be echoed
// back unchanged in the matching PostReport.
type PostOrder struct {
	TaskID string     `json:"task_id"`
	Post   SocialPost `json:"post"`
}

// PostReport is the payload of a post_result envelope.
type PostReport struct {
	TaskID string        `json:"task_id"`
	Result PublishResult `json:"result"`
}

// TaskStatus is the payload of a status_update envelope: the aggregated
// outcome of one finished task.
type TaskStatus struct {
	TaskID   string                   `json:"task_id"`
	Title    string                   `json:"title"`
	Status   string                   `json:"status"`
	Results  map[string]PublishResult `json:"results"`
	Duration time.Duration            `json:"duration"`
}

// Succeeded counts the successful platform results in a status report.
func (s TaskStatus) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}
