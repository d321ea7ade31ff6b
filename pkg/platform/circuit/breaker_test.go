package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded call result and the breaker state expected after it.
type step struct {
	fail     bool
	wantOpen bool
	opened   bool
	closed   bool
}

func TestBreaker_Sequences(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure only",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
				{fail: true, wantOpen: true},
			},
		},
		{
			name: "a success in between restarts the failure count",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true},
				{},
				{fail: true},
				{fail: true, wantOpen: true, opened: true},
			},
		},
		{
			name: "closes after consecutive probes succeed",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, opened: true},
				{wantOpen: true},
				{closed: true},
				{},
			},
		},
		{
			name: "a failed probe restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, opened: true},
				{wantOpen: true},
				{fail: true, wantOpen: true},
				{wantOpen: true},
				{closed: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("shared-store", tt.opts...)
			for i, s := range tt.steps {
				var change StateChange
				if s.fail {
					_, change = b.RecordFailure()
				} else {
					_, change = b.RecordSuccess()
				}
				assert.Equal(t, s.wantOpen, b.IsOpen(), "step %d", i)
				assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
				assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
			}
		})
	}
}

func TestBreaker_FallbackSignals(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(2), WithSuccessThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback, "below threshold the caller keeps its primary path")
	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreaker_DefaultsAndReset(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, "shared-store", b.Name())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		b.RecordFailure()
	}
	require.False(t, b.IsOpen(), "non-positive thresholds keep the default of 5")
	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b := New("shared-store", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.True(t, b.IsOpen())
}
