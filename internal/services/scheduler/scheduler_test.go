package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexport/internal/common"
)

func TestRunNowExecutesBatch(t *testing.T) {
	ran := make(chan struct{})
	s := NewScheduler(func(ctx context.Context) error {
		close(ran)
		return nil
	}, common.GetLogger())

	s.RunNow()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not run")
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	var runs atomic.Int32
	block := make(chan struct{})
	s := NewScheduler(func(ctx context.Context) error {
		runs.Add(1)
		<-block
		return nil
	}, common.GetLogger())

	s.RunNow()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, time.Millisecond)

	// A second trigger while the first batch is in flight must be dropped.
	s.RunNow()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(block)
	assert.Never(t, func() bool { return runs.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond,
		"the skipped trigger must not run late")
}
