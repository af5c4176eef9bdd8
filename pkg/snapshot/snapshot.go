// Package snapshot converts workflow definitions to and from their portable
// JSON form. Loaded snapshots are checked against an embedded JSON schema and
// come back with every status reset to idle.
package snapshot

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)
)

// FieldError is one schema violation.
type FieldError struct {
	Field       string
	Description string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}

	return fmt.Sprintf("%s: %s", ErrInvalidSnapshot, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSnapshot
}

// Export builds the snapshot of def. Statuses are transient and exported as idle.
func Export(def *models.WorkflowDefinition) *models.Snapshot {
	clone := def.Clone()
	clone.ResetStatuses()

	if clone.Nodes == nil {
		clone.Nodes = []*models.WorkflowNode{}
	}

	if clone.Edges == nil {
		clone.Edges = []*models.WorkflowEdge{}
	}

	return &models.Snapshot{
		Nodes: clone.Nodes,
		Edges: clone.Edges,
		Metadata: models.SnapshotMetadata{
			ID:          clone.ID,
			Name:        clone.Name,
			Description: clone.Description,
			CreatedAt:   clone.CreatedAt,
			NodeCount:   len(clone.Nodes),
			EdgeCount:   len(clone.Edges),
		},
	}
}

// Marshal exports def as indented JSON.
func Marshal(def *models.WorkflowDefinition) ([]byte, error) {
	data, err := json.MarshalIndent(Export(def), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return data, nil
}

// Validate checks data against the snapshot schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{Field: re.Field(), Description: re.Description()})
	}

	return verr
}

// Unmarshal validates data and returns the workflow it describes with all
// statuses idle. Graph rules are not checked here; importing the result into
// a graph store does that.
func Unmarshal(data []byte) (*models.WorkflowDefinition, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	return Load(&snap)
}

// Load turns a decoded snapshot into a workflow definition.
func Load(snap *models.Snapshot) (*models.WorkflowDefinition, error) {
	if snap.Metadata.NodeCount != len(snap.Nodes) {
		return nil, fmt.Errorf("%w: metadata counts %d nodes, found %d", ErrInvalidSnapshot, snap.Metadata.NodeCount, len(snap.Nodes))
	}

	if snap.Metadata.EdgeCount != len(snap.Edges) {
		return nil, fmt.Errorf("%w: metadata counts %d edges, found %d", ErrInvalidSnapshot, snap.Metadata.EdgeCount, len(snap.Edges))
	}

	def := &models.WorkflowDefinition{
		ID:          snap.Metadata.ID,
		Name:        snap.Metadata.Name,
		Description: snap.Metadata.Description,
		Nodes:       make([]*models.WorkflowNode, 0, len(snap.Nodes)),
		Edges:       make([]*models.WorkflowEdge, 0, len(snap.Edges)),
		CreatedAt:   snap.Metadata.CreatedAt,
		UpdatedAt:   snap.Metadata.CreatedAt,
	}

	for _, n := range snap.Nodes {
		def.Nodes = append(def.Nodes, n.Clone())
	}

	for _, e := range snap.Edges {
		def.Edges = append(def.Edges, e.Clone())
	}

	def.ResetStatuses()

	return def, nil
}

// ReadFile loads and validates the snapshot stored at path.
func ReadFile(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	return Unmarshal(data)
}

// WriteFile exports def to path.
func WriteFile(path string, def *models.WorkflowDefinition) error {
	data, err := Marshal(def)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}

	return nil
}
