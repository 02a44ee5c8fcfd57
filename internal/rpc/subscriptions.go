package rpc

import (
	"sync"
)

// SubscriptionType identifies an event stream.
type SubscriptionType string

const (
	// SubOffers carries every offer lifecycle event.
	SubOffers SubscriptionType = "offers"
	// SubCreated, SubMatched and SubCanceled carry one kind each.
	SubCreated  SubscriptionType = "created"
	SubMatched  SubscriptionType = "matched"
	SubCanceled SubscriptionType = "canceled"
)

func validStream(s SubscriptionType) bool {
	switch s {
	case SubOffers, SubCreated, SubMatched, SubCanceled:
		return true
	}
	return false
}

// SubscriptionRequest is the parsed body of a subscribe or unsubscribe
// command.
type SubscriptionRequest struct {
	Streams []SubscriptionType `json:"streams"`
}

// Connection is a subscriber as the manager sees it. SendChannel must be
// drained by the transport; a full channel drops the message for that
// connection.
type Connection struct {
	ID            string
	Subscriptions map[SubscriptionType]struct{}
	SendChannel   chan []byte
	CloseChannel  chan struct{}
}

// SubscriptionManager tracks which connections listen to which streams.
type SubscriptionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewSubscriptionManager returns an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{connections: make(map[string]*Connection)}
}

// AddConnection registers a connection.
func (m *SubscriptionManager) AddConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

// RemoveConnection drops a connection and its subscriptions.
func (m *SubscriptionManager) RemoveConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// HandleSubscribe adds the requested streams to a connection.
func (m *SubscriptionManager) HandleSubscribe(c *Connection, req SubscriptionRequest) *RpcError {
	if len(req.Streams) == 0 {
		return RpcErrorInvalidParams("No streams requested")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stream := range req.Streams {
		if !validStream(stream) {
			return RpcErrorInvalidParams("Unknown stream: " + string(stream))
		}
	}
	for _, stream := range req.Streams {
		c.Subscriptions[stream] = struct{}{}
	}
	return nil
}

// HandleUnsubscribe removes the requested streams; an empty request clears
// everything.
func (m *SubscriptionManager) HandleUnsubscribe(c *Connection, req SubscriptionRequest) *RpcError {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(req.Streams) == 0 {
		for stream := range c.Subscriptions {
			delete(c.Subscriptions, stream)
		}
		return nil
	}
	for _, stream := range req.Streams {
		delete(c.Subscriptions, stream)
	}
	return nil
}

// BroadcastToStream sends data to every connection subscribed to the stream
// or to the catch-all offers stream.
func (m *SubscriptionManager) BroadcastToStream(stream SubscriptionType, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		_, direct := c.Subscriptions[stream]
		_, all := c.Subscriptions[SubOffers]
		if !direct && !all {
			continue
		}
		select {
		case c.SendChannel <- data:
		case <-c.CloseChannel:
		default:
			// Slow subscriber, drop the message.
		}
	}
}

// GetSubscriberCount returns how many connections listen to a stream.
func (m *SubscriptionManager) GetSubscriberCount(stream SubscriptionType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.connections {
		if _, ok := c.Subscriptions[stream]; ok {
			count++
		}
	}
	return count
}
