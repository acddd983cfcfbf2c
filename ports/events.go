package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, address, communityID, tokenID string) error
	PublishUpload(ctx context.Context, address, communityID, cid string, size int64) error
}
