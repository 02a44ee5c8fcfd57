package rpc

import (
	"encoding/json"
	"log"

	"github.com/LeJamon/simpledexd/internal/core/engine"
)

// Publisher fans engine lifecycle events out to WebSocket subscribers.
type Publisher struct {
	manager *SubscriptionManager
}

// NewPublisher builds a publisher over a subscription manager.
func NewPublisher(manager *SubscriptionManager) *Publisher {
	return &Publisher{manager: manager}
}

// envelope wraps an event with its type tag for the wire.
type envelope struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

func (p *Publisher) publish(stream SubscriptionType, typ string, event interface{}) {
	if p.manager == nil {
		return
	}
	data, err := json.Marshal(envelope{Type: typ, Event: event})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", typ, err)
		return
	}
	p.manager.BroadcastToStream(stream, data)
}

// PublishOfferCreated implements engine.EventPublisher.
func (p *Publisher) PublishOfferCreated(ev engine.OfferCreatedEvent) {
	p.publish(SubCreated, "offerCreated", ev)
}

// PublishOffersMatched implements engine.EventPublisher.
func (p *Publisher) PublishOffersMatched(ev engine.OffersMatchedEvent) {
	p.publish(SubMatched, "offersMatched", ev)
}

// PublishOfferCanceled implements engine.EventPublisher.
func (p *Publisher) PublishOfferCanceled(ev engine.OfferCanceledEvent) {
	p.publish(SubCanceled, "offerCanceled", ev)
}

// NoOpPublisher discards all events.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishOfferCreated(ev engine.OfferCreatedEvent)   {}
func (NoOpPublisher) PublishOffersMatched(ev engine.OffersMatchedEvent) {}
func (NoOpPublisher) PublishOfferCanceled(ev engine.OfferCanceledEvent) {}

var _ engine.EventPublisher = (*Publisher)(nil)
var _ engine.EventPublisher = NoOpPublisher{}
