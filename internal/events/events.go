package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/mq"
	"github.com/esp-pix/authserver/types"
)

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, types.AuthEvent) {}

// DefaultPublishTimeout bounds how long a request waits on the broker.
const DefaultPublishTimeout = 500 * time.Millisecond

// BusPublisher serializes auth events as JSON onto a message-bus channel.
// Delivery is best effort: failures are logged and never reach the caller.
type BusPublisher struct {
	bus     *mq.MQ
	channel string
	timeout time.Duration
}

func NewBusPublisher(bus *mq.MQ, channel string) *BusPublisher {
	return &BusPublisher{bus: bus, channel: channel, timeout: DefaultPublishTimeout}
}

func (p *BusPublisher) Publish(ctx context.Context, event types.AuthEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	l := logging.FromContext(ctx).With("svc", "events", "event", string(event.Type))

	data, err := json.Marshal(event)
	if err != nil {
		l.Error("encode auth event", "error", err)
		return
	}
	attrs := map[string]string{
		mq.AttrContentType: "application/json",
		mq.AttrType:        string(event.Type),
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.bus.Publish(ctx, p.channel, data, attrs); err != nil {
		l.Warn("publish auth event", "channel", p.channel, "error", err)
	}
}

// Tail subscribes to channel and hands every decodable event to fn until ctx ends.
// Messages that are not auth events are acknowledged and skipped.
func Tail(ctx context.Context, bus *mq.MQ, channel string, fn func(types.AuthEvent)) error {
	return bus.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var event types.AuthEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type == "" {
			logging.FromContext(ctx).Warn("skip malformed auth event", "message_id", msg.ID)
			return nil
		}
		fn(event)
		return nil
	})
}

// Describe renders an event as a single human-readable line.
func Describe(e types.AuthEvent) string {
	line := fmt.Sprintf("%s %s", e.At.UTC().Format(time.RFC3339), e.Type)
	if e.ActorID != "" {
		line += " actor=" + e.ActorID
	}
	if e.SubjectID != "" {
		line += " subject=" + e.SubjectID
	}
	if e.Email != "" {
		line += " email=" + e.Email
	}
	if e.Detail != "" {
		line += " detail=" + e.Detail
	}
	return line
}
