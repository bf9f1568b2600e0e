package port

import (
	"context"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

// EventPublisher hands committed events to the notification collaborator.
// Publish must not block the caller.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Notifier delivers a single event to its destination.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// IdentityVerifier turns a caller-presented credential into a trusted identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}
