// Package realtime fans conversation events out to live subscribers.
// Delivery is at-most-once: a subscriber that falls behind misses events.
package realtime

import (
	"context"
	"encoding/json"
	"strconv"
)

const EventNewMessage = "new_message"

// Event is the frame written to subscribers.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe returns a channel of events for topic. The channel is closed
	// after cancel is called or ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
	Close() error
}

func ConversationTopic(id uint64) string {
	return "chat:" + strconv.FormatUint(id, 10)
}

const subscriberBuffer = 32
