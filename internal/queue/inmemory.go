package queue

import (
	"context"
	"sync"
)

// InMemoryPublisher is the no-broker wiring for single-process
// deployments and tests, generalizing the teacher's InMemoryQueue into
// the narrower Publisher/Handler shape this domain needs.
type InMemoryPublisher struct {
	mu      sync.Mutex
	handler func(context.Context, TriggerMessage) error
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

// SetHandler registers the (single) consumer; the command service and
// the worker typically share one process in the in-memory wiring.
func (p *InMemoryPublisher) SetHandler(h func(context.Context, TriggerMessage) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *InMemoryPublisher) PublishTrigger(ctx context.Context, msg TriggerMessage) error {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return nil
	}
	go h(ctx, msg)
	return nil
}
