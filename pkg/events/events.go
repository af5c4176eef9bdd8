// Package events defines the status stream produced while a workflow runs.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is where the stream is published on a message broker.
const Topic = "agentgraph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent        EventType = "run.started"
	RunFinishedEvent       EventType = "run.finished"
	NodeStatusChangedEvent EventType = "node.status_changed"
	EdgeStatusChangedEvent EventType = "edge.status_changed"
	A2AMessageEvent        EventType = "a2a.message"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetType() EventType {
	return b.Type
}

type RunStarted struct {
	BaseEvent

	Path       []string       `json:"path"`
	EntryInput map[string]any `json:"entry_input,omitempty"`
}

func (RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	Status        models.ExecutionStatus `json:"status"`
	FailedNodeID  string                 `json:"failed_node_id,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Cancelled     bool                   `json:"cancelled,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	NodesExecuted int                    `json:"nodes_executed"`
}

func (RunFinished) GetType() EventType {
	return RunFinishedEvent
}

// NodeStatusChanged is emitted on every node status transition during a run.
type NodeStatusChanged struct {
	BaseEvent

	NodeID string            `json:"node_id"`
	Kind   models.NodeKind   `json:"kind"`
	Status models.NodeStatus `json:"status"`
}

func (NodeStatusChanged) GetType() EventType {
	return NodeStatusChangedEvent
}

// EdgeStatusChanged is emitted on every edge status transition during a run.
type EdgeStatusChanged struct {
	BaseEvent

	EdgeID       string            `json:"edge_id"`
	SourceNodeID string            `json:"source_node_id"`
	TargetNodeID string            `json:"target_node_id"`
	Status       models.EdgeStatus `json:"status"`
}

func (EdgeStatusChanged) GetType() EventType {
	return EdgeStatusChangedEvent
}

type A2AMessage struct {
	BaseEvent

	Outcome models.A2AOutcome `json:"outcome"`
}

func (A2AMessage) GetType() EventType {
	return A2AMessageEvent
}

func NewBaseEvent(eventType EventType, workflowID, executionID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   at.UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

// Decode turns a serialized event back into its typed form.
func Decode(eventType EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case RunStartedEvent:
		event = &RunStarted{}
	case RunFinishedEvent:
		event = &RunFinished{}
	case NodeStatusChangedEvent:
		event = &NodeStatusChanged{}
	case EdgeStatusChangedEvent:
		event = &EdgeStatusChanged{}
	case A2AMessageEvent:
		event = &A2AMessage{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}
