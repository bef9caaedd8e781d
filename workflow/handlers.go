package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowmesh/flowmesh/types"
)

// Built-in step handlers. Real inference and tool execution live behind
// injected collaborators; when a collaborator is absent the handler returns
// a placeholder map so chains stay executable in tests and local runs.

// GenerationProvider produces text for generation steps.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ToolInvoker executes a named tool for tool-call steps.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, params map[string]any) (any, error)
}

// PromptHandler renders the step's "template" configuration, substituting
// {key} references with values from the running data map.
type PromptHandler struct{}

// Execute implements Handler.
func (h *PromptHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	template, _ := cfg.GetString("template")
	rendered := template
	for key, value := range input {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", fmt.Sprintf("%v", value))
	}
	return map[string]any{"prompt": rendered}, nil
}

// GenerationHandler calls the injected provider with the prompt produced by
// an earlier step (or the "prompt" configuration entry). When no provider
// is injected it returns a placeholder.
type GenerationHandler struct {
	Provider GenerationProvider
}

// Execute implements Handler.
func (h *GenerationHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	prompt := ""
	if p, ok := input["prompt"].(string); ok {
		prompt = p
	} else if p, ok := cfg.GetString("prompt"); ok {
		prompt = p
	}

	if h.Provider == nil {
		model, _ := cfg.GetString("model")
		return map[string]any{
			"generated": "",
			"model":     model,
			"prompt":    prompt,
		}, nil
	}

	text, err := h.Provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	return map[string]any{"generated": text}, nil
}

// ToolCallHandler invokes the tool named by the "tool" configuration entry
// through the injected invoker, passing the running data map as parameters.
type ToolCallHandler struct {
	Invoker ToolInvoker
}

// Execute implements Handler.
func (h *ToolCallHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	name, _ := cfg.GetString("tool")

	if h.Invoker == nil {
		return map[string]any{
			"tool":   name,
			"params": input,
		}, nil
	}

	result, err := h.Invoker.Invoke(ctx, name, input)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return result, nil
}

// MemoryReadHandler retrieves the "key" configuration entry from the shared
// state store and exposes it under that key in the result.
type MemoryReadHandler struct {
	Store StateStore
}

// Execute implements Handler.
func (h *MemoryReadHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	key, ok := cfg.GetString("key")
	if !ok || key == "" {
		return nil, types.NewError(types.ErrInvalidConfiguration, "memory_read step requires a \"key\" configuration entry")
	}
	if h.Store == nil {
		return map[string]any{key: nil, "found": false}, nil
	}

	value, found, err := h.Store.Retrieve(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("memory read %q: %w", key, err)
	}
	return map[string]any{key: value, "found": found}, nil
}

// ParseHandler decodes the JSON document held by the input key named in
// the "source" configuration entry and merges the parsed fields.
type ParseHandler struct{}

// Execute implements Handler.
func (h *ParseHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	source, ok := cfg.GetString("source")
	if !ok || source == "" {
		return nil, types.NewError(types.ErrInvalidConfiguration, "parse step requires a \"source\" configuration entry")
	}

	raw, ok := input[source].(string)
	if !ok {
		return nil, fmt.Errorf("parse source %q is not a string", source)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse source %q: %w", source, err)
	}
	return parsed, nil
}

// ConditionalHandler compares the input value at the "key" configuration
// entry against the "equals" entry.
type ConditionalHandler struct{}

// Execute implements Handler.
func (h *ConditionalHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	key, ok := cfg.GetString("key")
	if !ok || key == "" {
		return nil, types.NewError(types.ErrInvalidConfiguration, "conditional step requires a \"key\" configuration entry")
	}

	expected := cfg["equals"]
	matched := fmt.Sprintf("%v", input[key]) == fmt.Sprintf("%v", expected.ToAny())
	return map[string]any{"matched": matched}, nil
}

// TransformHandler merges the "set" configuration map into the running
// data. With no "set" entry it passes the input through unchanged.
type TransformHandler struct{}

// Execute implements Handler.
func (h *TransformHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	set, ok := cfg.GetMap("set")
	if !ok {
		return copyMap(input), nil
	}

	out := make(map[string]any, len(set))
	for k, v := range set {
		out[k] = v.ToAny()
	}
	return out, nil
}

// CustomHandler wraps an injected function. It fails as a configuration
// error when no function is set.
type CustomHandler struct {
	Fn HandlerFunc
}

// Execute implements Handler.
func (h *CustomHandler) Execute(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
	if h.Fn == nil {
		return nil, types.NewError(types.ErrInvalidConfiguration, "custom step has no handler function")
	}
	return h.Fn(ctx, input, cfg)
}

// registerDefaultHandlers installs one handler per step type. The dispatch
// table is exhaustive over StepType; a new step kind must be added here.
func registerDefaultHandlers(reg *HandlerRegistry, store StateStore) {
	reg.Register(StepPrompt, &PromptHandler{})
	reg.Register(StepGeneration, &GenerationHandler{})
	reg.Register(StepToolCall, &ToolCallHandler{})
	reg.Register(StepMemoryRead, &MemoryReadHandler{Store: store})
	reg.Register(StepParse, &ParseHandler{})
	reg.Register(StepConditional, &ConditionalHandler{})
	reg.Register(StepTransform, &TransformHandler{})
	reg.Register(StepCustom, &CustomHandler{})
}
