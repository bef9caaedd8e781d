package workflow

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrorEvent is one engine-level failure, published on the passive
// notification stream. It supplements the error returned to the caller;
// the two are never conflated.
type ErrorEvent struct {
	WorkflowID  string
	ExecutionID string
	// Stage identifies where the failure originated, e.g. "chain" or "graph".
	Stage string
	Err   error
	At    time.Time
}

// ErrorStream is a bounded, fire-and-forget error-notification channel.
// Publishing never blocks an execution: when no observer keeps up, events
// are dropped and counted.
type ErrorStream struct {
	mu      sync.RWMutex
	ch      chan ErrorEvent
	logger  *zap.Logger
	dropped atomic.Int64
	closed  bool
}

// DefaultErrorBuffer is the stream capacity when none is configured.
const DefaultErrorBuffer = 64

// NewErrorStream creates a stream with the given buffer capacity.
func NewErrorStream(buffer int, logger *zap.Logger) *ErrorStream {
	if buffer <= 0 {
		buffer = DefaultErrorBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorStream{
		ch:     make(chan ErrorEvent, buffer),
		logger: logger.With(zap.String("component", "error_stream")),
	}
}

// Publish offers an event to observers without blocking the caller.
func (s *ErrorStream) Publish(ev ErrorEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		s.logger.Warn("error event dropped, stream full",
			zap.String("workflow_id", ev.WorkflowID),
			zap.String("execution_id", ev.ExecutionID),
		)
	}
}

// Events returns the receive side of the stream for observers. The channel
// is closed by Close; buffered events remain readable after that.
func (s *ErrorStream) Events() <-chan ErrorEvent {
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *ErrorStream) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the stream.
func (s *ErrorStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
