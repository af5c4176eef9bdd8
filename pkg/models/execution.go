package models

import "time"

// ExecutionStatus is the lifecycle state of a whole run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusError     ExecutionStatus = "error"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusError
}

// A2AStatus is the terminal outcome of one agent-to-agent send.
type A2AStatus string

const (
	A2ADelivered A2AStatus = "delivered"
	A2AFailed    A2AStatus = "failed"
	A2ATimeout   A2AStatus = "timeout"
)

// A2AOutcome is the result of one message send, after all retries.
type A2AOutcome struct {
	EdgeID     string    `json:"edge_id"`
	FromNodeID string    `json:"from_node_id"`
	ToNodeID   string    `json:"to_node_id"`
	Status     A2AStatus `json:"status"`
	Response   any       `json:"response,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	Attempts   int       `json:"attempts"`
}

// NodeOutcome is the per-node entry in an execution record.
type NodeOutcome struct {
	NodeID       string       `json:"node_id"`
	Kind         NodeKind     `json:"kind"`
	Status       NodeStatus   `json:"status"`
	Response     any          `json:"response,omitempty"`
	Error        string       `json:"error,omitempty"`
	ElapsedMs    int64        `json:"elapsed_ms"`
	PartialInput bool         `json:"partial_input,omitempty"`
	A2A          []A2AOutcome `json:"a2a,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
}

// ExecutionRecord summarizes one run. It is frozen once Status is terminal.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Status        ExecutionStatus `json:"status"`
	EntryInput    map[string]any  `json:"entry_input,omitempty"`
	ExecutionPath []string        `json:"execution_path"`
	Results       []NodeOutcome   `json:"results"`
	FailedNodeID  string          `json:"failed_node_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Cancelled     bool            `json:"cancelled,omitempty"`
}

// Result returns the outcome recorded for nodeID.
func (r *ExecutionRecord) Result(nodeID string) (NodeOutcome, bool) {
	for _, o := range r.Results {
		if o.NodeID == nodeID {
			return o, true
		}
	}

	return NodeOutcome{}, false
}

// Clone returns a copy safe to hand out while the run is still appending.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	if r == nil {
		return nil
	}

	clone := *r
	clone.ExecutionPath = append([]string(nil), r.ExecutionPath...)
	clone.Results = make([]NodeOutcome, len(r.Results))

	for i, o := range r.Results {
		o.A2A = append([]A2AOutcome(nil), o.A2A...)
		clone.Results[i] = o
	}

	if r.FinishedAt != nil {
		t := *r.FinishedAt
		clone.FinishedAt = &t
	}

	return &clone
}
