package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-orders/internal/logger"
	"cafe-orders/internal/models"
	"cafe-orders/internal/services/notification"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// lateRequestServer commits an order while it is being shut down, like a
// request that finishes during the graceful drain.
type lateRequestServer struct {
	notifier *notification.Dispatcher
	err      error
}

func (s *lateRequestServer) Shutdown(context.Context) error {
	time.Sleep(20 * time.Millisecond)
	s.notifier.Notify(models.OrderEvent{
		Type:        models.EventOrderCreated,
		OrderID:     uuid.New(),
		OrderNumber: "ORD-2025-077",
	})
	return s.err
}

func TestDrainInOrder_PublishesEventsFromInFlightRequests(t *testing.T) {
	publisher := &recordingPublisher{}
	dispatcher := notification.NewDispatcher(publisher, logger.NewNop(), 8)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		dispatcher.Run(dispatchCtx)
	}()

	srv := &lateRequestServer{notifier: dispatcher}
	require.NoError(t, drainInOrder(context.Background(), srv, stopDispatch, &workers))

	assert.Equal(t, []string{string(models.EventOrderCreated)}, publisher.published())
}

func TestDrainInOrder_ReturnsShutdownErrorAfterStoppingWorkers(t *testing.T) {
	publisher := &recordingPublisher{}
	dispatcher := notification.NewDispatcher(publisher, logger.NewNop(), 8)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		dispatcher.Run(dispatchCtx)
	}()

	srv := &lateRequestServer{notifier: dispatcher, err: errors.New("deadline exceeded")}
	err := drainInOrder(context.Background(), srv, stopDispatch, &workers)
	assert.EqualError(t, err, "deadline exceeded")
	assert.Error(t, dispatchCtx.Err())
	assert.Len(t, publisher.published(), 1)
}
