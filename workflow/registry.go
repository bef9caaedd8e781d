package workflow

import (
	"sync"

	"go.uber.org/zap"
)

// HandlerRegistry maps chain step types to their handlers. The coordinator
// owns one instance and injects it into the chain engine; there is no
// ambient global state.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[StepType]Handler
	logger   *zap.Logger
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry(logger *zap.Logger) *HandlerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandlerRegistry{
		handlers: make(map[StepType]Handler),
		logger:   logger.With(zap.String("component", "handler_registry")),
	}
}

// Register associates a handler with a step type, overwriting any existing
// entry.
func (r *HandlerRegistry) Register(t StepType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		r.logger.Debug("handler overwritten", zap.String("step_type", string(t)))
	}
	r.handlers[t] = h
}

// Lookup returns the handler for a step type. Absence is a configuration
// error at the caller, not a retryable condition.
func (r *HandlerRegistry) Lookup(t StepType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// ProcessorRegistry maps names to shared node processors. Nodes carry their
// own injected processor; the registry exists so definitions can reference
// reusable processors by name.
type ProcessorRegistry struct {
	mu         sync.RWMutex
	processors map[string]NodeProcessor
	logger     *zap.Logger
}

// NewProcessorRegistry creates an empty processor registry.
func NewProcessorRegistry(logger *zap.Logger) *ProcessorRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessorRegistry{
		processors: make(map[string]NodeProcessor),
		logger:     logger.With(zap.String("component", "processor_registry")),
	}
}

// Register associates a processor with a name, overwriting any existing
// entry.
func (r *ProcessorRegistry) Register(name string, p NodeProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[name]; exists {
		r.logger.Debug("processor overwritten", zap.String("name", name))
	}
	r.processors[name] = p
}

// Lookup returns the processor registered under name.
func (r *ProcessorRegistry) Lookup(name string) (NodeProcessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}
