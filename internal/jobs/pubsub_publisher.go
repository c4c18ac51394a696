package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/feedlens/api/internal/services"
)

// PubSubSyncPublisher publishes feed sync events to a Pub/Sub topic.
type PubSubSyncPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSyncPublisher constructs a Pub/Sub backed sync event publisher.
func NewPubSubSyncPublisher(topic *pubsub.Topic) (*PubSubSyncPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub sync publisher: topic is required")
	}
	return &PubSubSyncPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSyncEvent enqueues a sync event message on the configured topic.
func (p *PubSubSyncPublisher) PublishSyncEvent(ctx context.Context, event services.SyncEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub sync publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal sync event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "accountId", event.AccountID)
	setAttr(attrs, "trigger", event.Trigger)
	attrs["productCount"] = strconv.Itoa(event.ProductCount)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish sync event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
