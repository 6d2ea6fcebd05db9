package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_ProcessesInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var got []byte

	p := New(0, func(b byte) {
		mu.Lock()
		got = append(got, b)
		mu.Unlock()
	})
	defer p.Shutdown()

	ctx := context.Background()
	input := []byte("the quick brown fox")
	require.NoError(t, p.SubmitBytes(ctx, input))
	p.WaitForProcessing()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, input, got)
}

func TestPipeline_ShutdownIsIdempotentAndRejectsSubmit(t *testing.T) {
	p := New(0, func(byte) {})
	p.Shutdown()
	p.Shutdown() // must not panic or block

	err := p.Submit(context.Background(), 'x')
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPipeline_SubmitBlocksOnFullQueueUntilDrained(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	p := New(1, func(b byte) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	defer p.Shutdown()

	ctx := context.Background()
	// First byte is picked up by the consumer immediately and blocks
	// inside sink on <-release.
	require.NoError(t, p.Submit(ctx, 1))
	<-started

	// Second byte fills the 1-capacity buffer.
	require.NoError(t, p.Submit(ctx, 2))

	// Third byte has nowhere to go until the consumer drains; it should
	// time out against a short-deadline context rather than ever fail
	// with anything but DeadlineExceeded.
	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := p.Submit(shortCtx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestPipeline_WaitForProcessingBlocksUntilDrainedAndIdle(t *testing.T) {
	var mu sync.Mutex
	count := 0

	p := New(0, func(b byte) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer p.Shutdown()

	require.NoError(t, p.SubmitBytes(context.Background(), make([]byte, 50)))
	p.WaitForProcessing()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}

func TestPipeline_ProcessedCountsBytesHandledToSink(t *testing.T) {
	p := New(0, func(byte) {})
	defer p.Shutdown()

	require.NoError(t, p.SubmitBytes(context.Background(), []byte{1, 2, 3}))
	p.WaitForProcessing()
	assert.EqualValues(t, 3, p.Processed())
}
