package events

// EventRouter fans channel events out to the event bus. It exists so the
// engine depends on one narrow publishing surface and the bus can grow
// per-channel filtering without touching callers.
type EventRouter struct {
	eventBus *EventBus
}

// NewEventRouter creates a new EventRouter instance
func NewEventRouter(eventBus *EventBus) *EventRouter {
	return &EventRouter{
		eventBus: eventBus,
	}
}

// PublishChannelEvent publishes a channel-specific event
func (er *EventRouter) PublishChannelEvent(event ChannelEvent) {
	if er == nil || er.eventBus == nil {
		return
	}
	er.eventBus.Publish(event)
}

// Subscribe exposes bus subscription through the router
func (er *EventRouter) Subscribe() (SubscriberID, chan ChannelEvent) {
	return er.eventBus.Subscribe()
}

// Unsubscribe exposes bus unsubscription through the router
func (er *EventRouter) Unsubscribe(id SubscriberID) bool {
	return er.eventBus.Unsubscribe(id)
}
