package models

import "time"

type SnapshotMetadata struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	NodeCount   int       `json:"nodeCount"`
	EdgeCount   int       `json:"edgeCount"`
}

// Snapshot is the serialized, format-agnostic form of a workflow.
type Snapshot struct {
	Nodes    []*WorkflowNode  `json:"nodes"`
	Edges    []*WorkflowEdge  `json:"edges"`
	Metadata SnapshotMetadata `json:"metadata"`
}
