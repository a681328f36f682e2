package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/tomymiron/ETH-Global/config"
	"google.golang.org/api/option"
)

const (
	defaultSubscriptionSuffix = "-sub"
	// Bounds in-flight mail jobs per worker.
	pubsubMaxOutstanding = 10
)

// PubSubBackend publishes to and consumes from Google Cloud Pub/Sub. Each
// channel maps to a topic of the same name; topics are created on first
// use and cached for the life of the backend.
type PubSubBackend struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubBackend(ctx context.Context, cfg config.PubSubConfig) (*PubSubBackend, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = defaultSubscriptionSuffix
	}
	return &PubSubBackend{
		client: client,
		suffix: suffix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

func (p *PubSubBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	id, err := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe blocks until ctx is done. A handler error nacks the message
// so Pub/Sub redelivers it.
func (p *PubSubBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	name := subscriptionID(channel, p.suffix)
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", name, err)
	}
	if !exists {
		if sub, err = p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic}); err != nil {
			return fmt.Errorf("create subscription %s: %w", name, err)
		}
	}

	sub.ReceiveSettings.MaxOutstandingMessages = pubsubMaxOutstanding
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, Message{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes before closing the client.
func (p *PubSubBackend) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubBackend) topic(ctx context.Context, channel string) (*pubsub.Topic, error) {
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("pubsub channel is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[channel]; ok {
		return topic, nil
	}

	topic := p.client.Topic(channel)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", channel, err)
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, channel); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", channel, err)
		}
	}
	p.topics[channel] = topic
	return topic, nil
}

func subscriptionID(channel, suffix string) string {
	return channel + suffix
}
