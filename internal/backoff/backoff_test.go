package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_DelayBoundedByCap(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: 2 * time.Second, MaxAttempts: 10}
	for attempt := 0; attempt < 20; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, 2*time.Second, "attempt=%d", attempt)
		}
	}
}

func TestPolicy_DelayGrowsUpToCap(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Cap: 800 * time.Millisecond}
	// El máximo posible del jitter crece: base·2^attempt hasta el cap
	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, p.Delay(0), 100*time.Millisecond)
		assert.LessOrEqual(t, p.Delay(2), 400*time.Millisecond)
		assert.LessOrEqual(t, p.Delay(10), 800*time.Millisecond)
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	p := Policy{Base: time.Millisecond, Cap: time.Second, MaxAttempts: 3}
	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(7))

	unbounded := Policy{Base: time.Millisecond, Cap: time.Second}
	assert.False(t, unbounded.Exhausted(1000))
}

func TestPolicy_SleepRespectsCancellation(t *testing.T) {
	p := Policy{Base: 10 * time.Second, Cap: 10 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	go func() { done <- p.Sleep(ctx, 5) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep did not return after context cancellation")
	}
}
