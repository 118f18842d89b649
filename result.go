package weave

import (
	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/provider"
	"github.com/google/uuid"
)

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateFinished  State = "finished"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// Result is the outcome of a run that finished or was cancelled.
type Result struct {
	RunID        uuid.UUID             `json:"runId"`
	State        State                 `json:"state"`
	Entries      content.List          `json:"entries"`
	Usage        provider.Usage        `json:"usage"`
	FinishReason provider.FinishReason `json:"finishReason,omitempty"`
}

// Text concatenates the text entries of the result.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return r.Entries.Text()
}
