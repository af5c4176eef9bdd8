package models

// EdgeKind distinguishes generic data flow from agent-to-agent connectors.
type EdgeKind string

const (
	EdgeKindData EdgeKind = "data"
	EdgeKindA2A  EdgeKind = "a2a"
)

func (k EdgeKind) Valid() bool {
	return k == EdgeKindData || k == EdgeKindA2A
}

// EdgeStatus reflects execution progress on an edge during a run.
type EdgeStatus string

const (
	EdgeStatusIdle    EdgeStatus = "idle"
	EdgeStatusActive  EdgeStatus = "active"
	EdgeStatusSuccess EdgeStatus = "success"
	EdgeStatusError   EdgeStatus = "error"
)

// CanTransition reports whether next follows s in idle -> active -> success|error.
func (s EdgeStatus) CanTransition(next EdgeStatus) bool {
	switch s {
	case EdgeStatusIdle, "":
		return next == EdgeStatusActive
	case EdgeStatusActive:
		return next == EdgeStatusSuccess || next == EdgeStatusError
	default:
		return false
	}
}

// ConnectorConfig carries delivery settings of an agent-to-agent edge. A zero
// timeout or nil retry count means "use the messenger default".
type ConnectorConfig struct {
	MessageTemplate string `json:"message_template,omitempty"`
	ConnectionType  string `json:"connection_type,omitempty"`
	TimeoutUnits    int    `json:"timeout_units,omitempty"     validate:"gte=0"`
	RetryCount      *int   `json:"retry_count,omitempty"       validate:"omitempty,gte=0"`
}

// WorkflowEdge connects two nodes of the same workflow.
type WorkflowEdge struct {
	ID           string           `json:"id"`
	SourceNodeID string           `json:"source_node_id"`
	TargetNodeID string           `json:"target_node_id"`
	Kind         EdgeKind         `json:"kind"`
	Label        string           `json:"label,omitempty"`
	Connector    *ConnectorConfig `json:"connector,omitempty"`
	Animated     bool             `json:"animated,omitempty"`
	Status       EdgeStatus       `json:"status"`
}

func (e *WorkflowEdge) Clone() *WorkflowEdge {
	if e == nil {
		return nil
	}

	clone := *e
	if e.Connector != nil {
		c := *e.Connector
		if c.RetryCount != nil {
			n := *c.RetryCount
			c.RetryCount = &n
		}

		clone.Connector = &c
	}

	return &clone
}
