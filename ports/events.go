package ports

import "context"

// EventPublisher notifies interested parties about session lifecycle changes.
// Publishing is best effort: the session manager logs failures and moves on.
type EventPublisher interface {
	// PublishEstablished fires when a session is created or restored.
	PublishEstablished(ctx context.Context, address string) error

	// PublishRefreshed fires after a successful token refresh.
	PublishRefreshed(ctx context.Context, address string) error

	// PublishEnded fires when a session ends; reason is one of "logout",
	// "refresh_failed" or "unauthorized".
	PublishEnded(ctx context.Context, address, reason string) error
}
