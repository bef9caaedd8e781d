package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/types"
)

const chainYAML = `
name: summarize
kind: chain
config:
  timeout_seconds: 10
  logging_enabled: true
steps:
  - id: render
    name: render prompt
    type: prompt
    config:
      template: "summarize {text}"
  - id: shape
    type: transform
    config:
      set:
        stage: done
`

const graphJSON = `{
  "name": "pipeline",
  "kind": "graph",
  "nodes": [
    {"id": "in", "type": "input", "processor": "input"},
    {"id": "agg", "type": "aggregator", "processor": "aggregator"}
  ],
  "edges": [
    {"from": "in", "to": "agg", "weight": 0.5,
     "condition": {"kind": "expression", "expression": "always"}}
  ]
}`

func TestDefinitionFromYAML(t *testing.T) {
	def, err := DefinitionFromYAML([]byte(chainYAML))
	require.NoError(t, err)

	assert.Equal(t, "summarize", def.Name)
	assert.Equal(t, KindChain, def.Kind)
	require.NotNil(t, def.Config)
	assert.Equal(t, 10.0, def.Config.TimeoutSeconds)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, StepPrompt, def.Steps[0].Type)
	assert.Equal(t, "summarize {text}", def.Steps[0].Config["template"])
}

func TestDefinitionFromJSON(t *testing.T) {
	def, err := DefinitionFromJSON([]byte(graphJSON))
	require.NoError(t, err)

	assert.Equal(t, KindGraph, def.Kind)
	require.Len(t, def.Edges, 1)
	assert.Equal(t, 0.5, def.Edges[0].Weight)
	require.NotNil(t, def.Edges[0].Condition)
	assert.Equal(t, EdgeExpression, def.Edges[0].Condition.Kind)
}

func TestDefinition_RoundTrip(t *testing.T) {
	def, err := DefinitionFromYAML([]byte(chainYAML))
	require.NoError(t, err)

	yamlOut, err := def.ToYAML()
	require.NoError(t, err)
	back, err := DefinitionFromYAML([]byte(yamlOut))
	require.NoError(t, err)
	assert.Equal(t, def, back)

	jsonOut, err := def.ToJSON()
	require.NoError(t, err)
	back, err = DefinitionFromJSON([]byte(jsonOut))
	require.NoError(t, err)
	assert.Equal(t, def, back)
}

func TestDefinition_Validate(t *testing.T) {
	cases := []struct {
		name string
		def  WorkflowDefinition
	}{
		{"missing name", WorkflowDefinition{Kind: KindChain}},
		{"unknown kind", WorkflowDefinition{Name: "x", Kind: "pipeline"}},
		{"chain with nodes", WorkflowDefinition{
			Name: "x", Kind: KindChain,
			Nodes: []NodeDefinition{{ID: "n1", Type: NodeInput}},
		}},
		{"graph with steps", WorkflowDefinition{
			Name: "x", Kind: KindGraph,
			Steps: []StepDefinition{{ID: "s1", Type: StepPrompt}},
		}},
		{"duplicate step id", WorkflowDefinition{
			Name: "x", Kind: KindChain,
			Steps: []StepDefinition{
				{ID: "s1", Type: StepPrompt},
				{ID: "s1", Type: StepParse},
			},
		}},
		{"empty node id", WorkflowDefinition{
			Name:  "x",
			Kind:  KindGraph,
			Nodes: []NodeDefinition{{Type: NodeInput}},
		}},
		{"edge without endpoints", WorkflowDefinition{
			Name:  "x",
			Kind:  KindGraph,
			Nodes: []NodeDefinition{{ID: "n1", Type: NodeInput}},
			Edges: []EdgeDefinition{{From: "n1"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidConfiguration, types.GetErrorCode(err))
		})
	}
}

func TestCreateWorkflowFromDefinition_Chain(t *testing.T) {
	c := newCoordinator(t)

	def, err := DefinitionFromYAML([]byte(chainYAML))
	require.NoError(t, err)

	wf, err := c.CreateWorkflowFromDefinition(def)
	require.NoError(t, err)
	assert.Equal(t, KindChain, wf.Kind)
	assert.Equal(t, 10*time.Second, wf.Config.Timeout)

	out, err := c.Execute(context.Background(), wf.ID, map[string]any{"text": "hi"}, nil)
	require.NoError(t, err)

	rendered := out.StepResults["render"].(map[string]any)
	assert.Equal(t, "summarize hi", rendered["prompt"])
	shaped := out.StepResults["shape"].(map[string]any)
	assert.Equal(t, "done", shaped["stage"])
}

func TestCreateWorkflowFromDefinition_Graph(t *testing.T) {
	c := newCoordinator(t)

	def, err := DefinitionFromJSON([]byte(graphJSON))
	require.NoError(t, err)

	wf, err := c.CreateWorkflowFromDefinition(def)
	require.NoError(t, err)
	assert.Equal(t, KindGraph, wf.Kind)

	out, err := c.Execute(context.Background(), wf.ID, map[string]any{"v": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"in", "agg"}, out.Path)
}

func TestCreateWorkflowFromDefinition_UnknownProcessor(t *testing.T) {
	c := newCoordinator(t)

	def := &WorkflowDefinition{
		Name: "bad",
		Kind: KindGraph,
		Nodes: []NodeDefinition{
			{ID: "n1", Type: NodeProcessing, Processor: "does-not-exist"},
		},
	}

	_, err := c.CreateWorkflowFromDefinition(def)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfiguration, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestCreateWorkflowFromDefinition_DefaultProcessorByType(t *testing.T) {
	c := newCoordinator(t)

	def := &WorkflowDefinition{
		Name: "typed",
		Kind: KindGraph,
		Nodes: []NodeDefinition{
			{ID: "n1", Type: NodeInput},
		},
	}

	wf, err := c.CreateWorkflowFromDefinition(def)
	require.NoError(t, err)
	require.NotNil(t, wf.Nodes[0].Processor)
}
