package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

func TestSchedulerDispatchesInOrder(t *testing.T) {
	queue := newMemQueue()
	ctx := context.Background()
	for _, payload := range []string{"first", "second", "third"} {
		require.NoError(t, queue.Enqueue(ctx, constants.QueueAnonymizationRequests, []byte(payload)))
	}

	scheduler := NewScheduler(testConfig(), queue, nil, helpers.GetTestLogger(t))
	go scheduler.Start(ctx)

	var received []string
	for len(received) < 3 {
		select {
		case payload := <-scheduler.GetJobQueue():
			received = append(received, string(payload))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, received)

	scheduler.Stop()
	scheduler.Stop()

	select {
	case _, ok := <-scheduler.GetJobQueue():
		assert.False(t, ok, "job channel closes after stop")
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, scheduler.IsRunning())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	scheduler := NewScheduler(testConfig(), newMemQueue(), nil, helpers.GetTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
