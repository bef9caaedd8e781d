package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStream_PublishReceive(t *testing.T) {
	stream := NewErrorStream(4, nil)

	stream.Publish(ErrorEvent{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		Stage:       "chain",
		Err:         errors.New("boom"),
		At:          time.Now(),
	})

	select {
	case ev := <-stream.Events():
		assert.Equal(t, "wf-1", ev.WorkflowID)
		assert.Equal(t, "exec-1", ev.ExecutionID)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestErrorStream_DropsWhenFull(t *testing.T) {
	stream := NewErrorStream(2, nil)

	for i := 0; i < 5; i++ {
		stream.Publish(ErrorEvent{WorkflowID: "wf-1", Err: errors.New("boom")})
	}

	assert.Equal(t, int64(3), stream.Dropped())
	assert.Len(t, stream.Events(), 2)
}

func TestErrorStream_CloseDrainsBuffered(t *testing.T) {
	stream := NewErrorStream(4, nil)
	stream.Publish(ErrorEvent{WorkflowID: "wf-1", Err: errors.New("boom")})
	stream.Close()

	// Buffered events survive Close; the channel then reports closed.
	ev, ok := <-stream.Events()
	require.True(t, ok)
	assert.Equal(t, "wf-1", ev.WorkflowID)

	_, ok = <-stream.Events()
	assert.False(t, ok)

	// Publishing after Close is a silent no-op.
	stream.Publish(ErrorEvent{WorkflowID: "wf-2"})
	stream.Close()
}
