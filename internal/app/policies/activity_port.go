package policies

import (
	"context"

	domainchat "adopet/internal/domain/chat"
)

// ActivityPublisher emits chat activity events after successful store
// writes. Publishing is best-effort; failures never fail the write that
// produced the event.
type ActivityPublisher interface {
	Publish(ctx context.Context, event domainchat.DomainEvent) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domainchat.DomainEvent) error { return nil }

var _ ActivityPublisher = NopPublisher{}
