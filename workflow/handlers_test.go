package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/types"
)

func TestPromptHandler_RendersTemplate(t *testing.T) {
	h := &PromptHandler{}

	result, err := h.Execute(context.Background(),
		map[string]any{"topic": "ravens", "count": 3},
		types.Values{"template": types.String("write {count} facts about {topic}")},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prompt": "write 3 facts about ravens"}, result)
}

func TestGenerationHandler_PlaceholderWithoutProvider(t *testing.T) {
	h := &GenerationHandler{}

	result, err := h.Execute(context.Background(),
		map[string]any{"prompt": "hello"},
		types.Values{"model": types.String("stub-1")},
	)
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, "stub-1", m["model"])
	assert.Equal(t, "hello", m["prompt"])
}

type fakeProvider struct{ out string }

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return f.out + ":" + prompt, nil
}

func TestGenerationHandler_UsesInjectedProvider(t *testing.T) {
	h := &GenerationHandler{Provider: &fakeProvider{out: "gen"}}

	result, err := h.Execute(context.Background(), map[string]any{"prompt": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"generated": "gen:hi"}, result)
}

type fakeInvoker struct {
	name   string
	params map[string]any
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	f.name = name
	f.params = params
	return map[string]any{"invoked": true}, nil
}

func TestToolCallHandler_UsesInjectedInvoker(t *testing.T) {
	invoker := &fakeInvoker{}
	h := &ToolCallHandler{Invoker: invoker}

	result, err := h.Execute(context.Background(),
		map[string]any{"query": "weather"},
		types.Values{"tool": types.String("search")},
	)
	require.NoError(t, err)
	assert.Equal(t, "search", invoker.name)
	assert.Equal(t, "weather", invoker.params["query"])
	assert.Equal(t, map[string]any{"invoked": true}, result)
}

func TestMemoryReadHandler(t *testing.T) {
	store := NewMemoryStateStore(nil)
	require.NoError(t, store.Save(context.Background(), "greeting", "hello", ""))

	h := &MemoryReadHandler{Store: store}

	result, err := h.Execute(context.Background(), nil, types.Values{"key": types.String("greeting")})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hello", "found": true}, result)

	result, err = h.Execute(context.Background(), nil, types.Values{"key": types.String("absent")})
	require.NoError(t, err)
	assert.Equal(t, false, result.(map[string]any)["found"])

	_, err = h.Execute(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfiguration, types.GetErrorCode(err))
}

func TestParseHandler(t *testing.T) {
	h := &ParseHandler{}

	result, err := h.Execute(context.Background(),
		map[string]any{"payload": `{"score": 0.9, "label": "ok"}`},
		types.Values{"source": types.String("payload")},
	)
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, 0.9, m["score"])
	assert.Equal(t, "ok", m["label"])

	_, err = h.Execute(context.Background(),
		map[string]any{"payload": "not json"},
		types.Values{"source": types.String("payload")},
	)
	assert.Error(t, err)

	_, err = h.Execute(context.Background(), map[string]any{"payload": 5}, types.Values{"source": types.String("payload")})
	assert.Error(t, err)
}

func TestConditionalHandler(t *testing.T) {
	h := &ConditionalHandler{}

	result, err := h.Execute(context.Background(),
		map[string]any{"status": "ready"},
		types.Values{"key": types.String("status"), "equals": types.String("ready")},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matched": true}, result)

	result, err = h.Execute(context.Background(),
		map[string]any{"status": "pending"},
		types.Values{"key": types.String("status"), "equals": types.String("ready")},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matched": false}, result)
}

func TestTransformHandler_PassthroughWithoutSet(t *testing.T) {
	h := &TransformHandler{}

	result, err := h.Execute(context.Background(), map[string]any{"x": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, result)
}

func TestCustomHandler(t *testing.T) {
	called := false
	h := &CustomHandler{Fn: func(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
		called = true
		return "custom", nil
	}}

	result, err := h.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "custom", result)

	empty := &CustomHandler{}
	_, err = empty.Execute(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidConfiguration, types.GetErrorCode(err))
}

func TestCustomHandler_ErrorPropagates(t *testing.T) {
	boom := errors.New("nope")
	h := &CustomHandler{Fn: func(ctx context.Context, input map[string]any, cfg types.Values) (any, error) {
		return nil, boom
	}}
	_, err := h.Execute(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, boom))
}
