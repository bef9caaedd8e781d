package workflow

import (
	"context"
	"fmt"

	"github.com/flowmesh/flowmesh/types"
)

// Built-in node processors. A Node carries its processor by injection; the
// implementations here cover the common node roles so definitions can
// reference them by name through the ProcessorRegistry.

// PassthroughProcessor returns its input unchanged. Registered for the
// input and output roles.
type PassthroughProcessor struct{}

// Process implements NodeProcessor.
func (p *PassthroughProcessor) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	return copyMap(input), nil
}

// AggregatorProcessor flattens map-shaped entries of the accumulated node
// results into one merged map; non-map entries are kept under their own key.
type AggregatorProcessor struct{}

// Process implements NodeProcessor.
func (p *AggregatorProcessor) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	merged := make(map[string]any, len(input))
	for key, value := range input {
		if m, ok := value.(map[string]any); ok {
			mergeInto(merged, m)
			continue
		}
		merged[key] = value
	}
	return merged, nil
}

// ValidatorProcessor checks that every key listed in Required is present in
// the node input.
type ValidatorProcessor struct {
	Required []string
}

// Process implements NodeProcessor.
func (p *ValidatorProcessor) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	var missing []string
	for _, key := range p.Required {
		if _, ok := input[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("validation failed, missing keys: %v", missing)
	}
	return map[string]any{"valid": true}, nil
}

// DecisionProcessor selects a branch label by comparing the input value at
// Key against Routes; Fallback applies when nothing matches.
type DecisionProcessor struct {
	Key      string
	Routes   map[string]string
	Fallback string
}

// Process implements NodeProcessor.
func (p *DecisionProcessor) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	value := fmt.Sprintf("%v", input[p.Key])
	if branch, ok := p.Routes[value]; ok {
		return map[string]any{"branch": branch}, nil
	}
	if p.Fallback != "" {
		return map[string]any{"branch": p.Fallback}, nil
	}
	return nil, fmt.Errorf("no route for %q=%q", p.Key, value)
}

// TransformProcessor applies an injected transformation function.
type TransformProcessor struct {
	Fn func(input map[string]any) (any, error)
}

// Process implements NodeProcessor.
func (p *TransformProcessor) Process(ctx context.Context, input map[string]any, callCtx map[string]any) (any, error) {
	if p.Fn == nil {
		return nil, types.NewError(types.ErrInvalidConfiguration, "transform node has no transformation function")
	}
	return p.Fn(input)
}

// registerDefaultProcessors installs reusable processors under the node
// type names so workflow definitions can reference them.
func registerDefaultProcessors(reg *ProcessorRegistry) {
	reg.Register(string(NodeInput), &PassthroughProcessor{})
	reg.Register(string(NodeOutput), &PassthroughProcessor{})
	reg.Register(string(NodeProcessing), &PassthroughProcessor{})
	reg.Register(string(NodeAggregator), &AggregatorProcessor{})
	reg.Register(string(NodeValidator), &ValidatorProcessor{})
	reg.Register(string(NodeTransform), &PassthroughProcessor{})
}
