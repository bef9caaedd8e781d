package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowmesh/flowmesh/types"
)

// WorkflowDefinition is the serializable inbound form of a workflow. It
// exists only as an exchange format; registered workflows live in the
// coordinator's in-memory registry.
type WorkflowDefinition struct {
	Name   string            `json:"name" yaml:"name"`
	Kind   Kind              `json:"kind" yaml:"kind"`
	Config *ConfigDefinition `json:"config,omitempty" yaml:"config,omitempty"`
	Steps  []StepDefinition  `json:"steps,omitempty" yaml:"steps,omitempty"`
	Nodes  []NodeDefinition  `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Edges  []EdgeDefinition  `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// ConfigDefinition is the wire form of Config; the timeout travels in
// seconds.
type ConfigDefinition struct {
	TimeoutSeconds float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	RetryAttempts  int     `json:"retry_attempts" yaml:"retry_attempts"`
	Parallel       bool    `json:"parallel" yaml:"parallel"`
	MemoryEnabled  bool    `json:"memory_enabled" yaml:"memory_enabled"`
	LoggingEnabled bool    `json:"logging_enabled" yaml:"logging_enabled"`
}

// StepDefinition is the wire form of a chain step.
type StepDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      StepType       `json:"type" yaml:"type"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Config    map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// NodeDefinition is the wire form of a graph node. Processor names a
// shared processor in the coordinator's registry.
type NodeDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      NodeType       `json:"type" yaml:"type"`
	Processor string         `json:"processor" yaml:"processor"`
	Config    map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// EdgeDefinition is the wire form of a directed edge.
type EdgeDefinition struct {
	From      string               `json:"from" yaml:"from"`
	To        string               `json:"to" yaml:"to"`
	Condition *ConditionDefinition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Weight    float64              `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// ConditionDefinition is the wire form of an edge condition.
type ConditionDefinition struct {
	Kind       EdgeConditionKind `json:"kind" yaml:"kind"`
	Expression string            `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Validate checks the definition's structural invariants. Acyclicity is
// not checked; it surfaces at execution time.
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return types.NewError(types.ErrInvalidConfiguration, "workflow name is required")
	}
	switch d.Kind {
	case KindChain:
		if len(d.Nodes) > 0 || len(d.Edges) > 0 {
			return types.NewError(types.ErrInvalidConfiguration, "chain workflows cannot declare nodes or edges")
		}
		seen := make(map[string]struct{}, len(d.Steps))
		for _, s := range d.Steps {
			if s.ID == "" {
				return types.NewError(types.ErrInvalidConfiguration, "step id is required")
			}
			if _, dup := seen[s.ID]; dup {
				return types.Errorf(types.ErrInvalidConfiguration, "duplicate step id %q", s.ID)
			}
			seen[s.ID] = struct{}{}
		}
	case KindGraph:
		if len(d.Steps) > 0 {
			return types.NewError(types.ErrInvalidConfiguration, "graph workflows cannot declare steps")
		}
		seen := make(map[string]struct{}, len(d.Nodes))
		for _, n := range d.Nodes {
			if n.ID == "" {
				return types.NewError(types.ErrInvalidConfiguration, "node id is required")
			}
			if _, dup := seen[n.ID]; dup {
				return types.Errorf(types.ErrInvalidConfiguration, "duplicate node id %q", n.ID)
			}
			seen[n.ID] = struct{}{}
		}
		for _, e := range d.Edges {
			if e.From == "" || e.To == "" {
				return types.NewError(types.ErrInvalidConfiguration, "edge endpoints are required")
			}
		}
	default:
		return types.Errorf(types.ErrInvalidConfiguration, "unknown workflow kind %q", d.Kind)
	}
	return nil
}

// ToJSON serializes the definition as indented JSON.
func (d *WorkflowDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal definition to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML serializes the definition as YAML.
func (d *WorkflowDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal definition to YAML: %w", err)
	}
	return string(data), nil
}

// DefinitionFromJSON decodes and validates a JSON workflow definition.
func DefinitionFromJSON(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition from JSON: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// DefinitionFromYAML decodes and validates a YAML workflow definition.
func DefinitionFromYAML(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition from YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// CreateWorkflowFromDefinition materializes a definition and registers it.
// Node processors are resolved by name through the shared processor
// registry; a missing processor is a configuration error.
func (c *Coordinator) CreateWorkflowFromDefinition(def *WorkflowDefinition) (*Workflow, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var cfg *Config
	if def.Config != nil {
		cfg = &Config{
			Timeout:        time.Duration(def.Config.TimeoutSeconds * float64(time.Second)),
			RetryAttempts:  def.Config.RetryAttempts,
			Parallel:       def.Config.Parallel,
			MemoryEnabled:  def.Config.MemoryEnabled,
			LoggingEnabled: def.Config.LoggingEnabled,
		}
	}

	switch def.Kind {
	case KindChain:
		steps := make([]Step, 0, len(def.Steps))
		for _, sd := range def.Steps {
			values, err := types.ValuesFromAny(sd.Config)
			if err != nil {
				return nil, types.Errorf(types.ErrInvalidConfiguration, "step %q config: %s", sd.ID, err.Error()).WithCause(err)
			}
			steps = append(steps, Step{
				ID:        sd.ID,
				Name:      sd.Name,
				Type:      sd.Type,
				DependsOn: sd.DependsOn,
				Config:    values,
			})
		}
		return c.CreateChainWorkflow(def.Name, steps, cfg)

	case KindGraph:
		processors := c.Processors()
		if processors == nil {
			return nil, types.NewError(types.ErrNotInitialized, "coordinator not initialized")
		}
		nodes := make([]Node, 0, len(def.Nodes))
		for _, nd := range def.Nodes {
			name := nd.Processor
			if name == "" {
				name = string(nd.Type)
			}
			proc, ok := processors.Lookup(name)
			if !ok {
				return nil, types.Errorf(types.ErrInvalidConfiguration, "node %q references unknown processor %q", nd.ID, name)
			}
			values, err := types.ValuesFromAny(nd.Config)
			if err != nil {
				return nil, types.Errorf(types.ErrInvalidConfiguration, "node %q config: %s", nd.ID, err.Error()).WithCause(err)
			}
			nodes = append(nodes, Node{
				ID:        nd.ID,
				Name:      nd.Name,
				Type:      nd.Type,
				Processor: proc,
				Config:    values,
			})
		}
		edges := make([]Edge, 0, len(def.Edges))
		for _, ed := range def.Edges {
			edge := Edge{From: ed.From, To: ed.To, Weight: ed.Weight}
			if ed.Condition != nil {
				edge.Condition = &EdgeCondition{
					Kind:       ed.Condition.Kind,
					Expression: ed.Condition.Expression,
				}
			}
			edges = append(edges, edge)
		}
		return c.CreateGraphWorkflow(def.Name, nodes, edges, cfg)
	}

	return nil, types.Errorf(types.ErrInvalidConfiguration, "unknown workflow kind %q", def.Kind)
}
