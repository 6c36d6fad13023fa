package event

import (
	"context"

	"github.com/viant/kproc/service/messaging"
)

type Publisher[T any] struct {
	queue    messaging.Queue[Event[T]]
	anyQueue messaging.Queue[Event[any]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

func (p *Publisher[T]) toAny(event *Event[T]) *Event[any] {
	return &Event[any]{
		Context:   event.Context,
		CreatedAt: event.CreatedAt,
		Metadata:  event.Metadata,
		Data:      event.Data,
	}
}

// Publish waits for room in the queue
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if p.anyQueue != nil {
		_ = p.anyQueue.TryPublish(p.toAny(event))
	}
	return p.queue.Publish(ctx, event)
}

// TryPublish never blocks; a full queue drops the event with messaging.ErrQueueFull
func (p *Publisher[T]) TryPublish(event *Event[T]) error {
	if p.anyQueue != nil {
		_ = p.anyQueue.TryPublish(p.toAny(event))
	}
	return p.queue.TryPublish(event)
}

func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
