package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/ccgate/ports"
)

const (
	TopicAuthenticated = "ccgate.auth.verified"
	TopicUploaded      = "ccgate.content.uploaded"
)

// AuthenticatedEvent is published when a token has been issued
type AuthenticatedEvent struct {
	Address     string `json:"address"`
	CommunityID string `json:"community_id"`
	TokenID     string `json:"token_id"`
	Timestamp   int64  `json:"timestamp"`
}

// UploadEvent is published when content has been stored
type UploadEvent struct {
	Address     string `json:"address"`
	CommunityID string `json:"community_id"`
	CID         string `json:"cid"`
	Size        int64  `json:"size"`
	Timestamp   int64  `json:"timestamp"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishAuthenticated publishes an authenticated event
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, address, communityID, tokenID string) error {
	return p.publish(ctx, TopicAuthenticated, AuthenticatedEvent{
		Address:     address,
		CommunityID: communityID,
		TokenID:     tokenID,
		Timestamp:   time.Now().UnixMilli(),
	})
}

// PublishUpload publishes an upload event
func (p *WatermillPublisher) PublishUpload(ctx context.Context, address, communityID, cid string, size int64) error {
	return p.publish(ctx, TopicUploaded, UploadEvent{
		Address:     address,
		CommunityID: communityID,
		CID:         cid,
		Size:        size,
		Timestamp:   time.Now().UnixMilli(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying publisher
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

var _ ports.EventPublisher = NopPublisher{}

func (NopPublisher) PublishAuthenticated(context.Context, string, string, string) error { return nil }

func (NopPublisher) PublishUpload(context.Context, string, string, string, int64) error { return nil }
