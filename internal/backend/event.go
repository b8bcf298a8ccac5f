package backend

import (
	"fmt"
	"strings"
	"time"
)

// EventKind is the change a document event reports
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
	// EventResync carries no document. A client emits it after its stream was
	// re-established; changes made while it was down are unknown.
	EventResync EventKind = "resync"
)

// Event is a change notification for a single document.
type Event struct {
	// Events holds the concrete event name and its wildcard form, e.g.
	// databases.main.collections.habits.documents.42.create and
	// databases.*.collections.*.documents.*.create
	Events    []string  `json:"events"`
	Channels  []string  `json:"channels"`
	Kind      EventKind `json:"kind"`
	Payload   Document  `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// CollectionChannel names the channel carrying document events of a collection
func CollectionChannel(database, collection string) string {
	return fmt.Sprintf("databases.%s.collections.%s.documents", database, collection)
}

// NewEvent builds the notification for a change to doc in database
func NewEvent(database string, kind EventKind, doc Document, at time.Time) Event {
	channel := CollectionChannel(database, doc.Collection)
	return Event{
		Events: []string{
			fmt.Sprintf("%s.%s.%s", channel, doc.ID, kind),
			fmt.Sprintf("databases.*.collections.*.documents.*.%s", kind),
		},
		Channels:  []string{channel, "documents"},
		Kind:      kind,
		Payload:   doc,
		Timestamp: at,
	}
}

// ResyncEvent builds the notification emitted after reconnecting to channel
func ResyncEvent(channel string, at time.Time) Event {
	return Event{
		Events:    []string{fmt.Sprintf("%s.%s", channel, EventResync)},
		Channels:  []string{channel},
		Kind:      EventResync,
		Timestamp: at,
	}
}

// HasKind reports whether any event name denotes one of kinds
func (e Event) HasKind(kinds ...EventKind) bool {
	for _, name := range e.Events {
		for _, k := range kinds {
			if strings.Contains(name, "documents.*."+string(k)) || strings.HasSuffix(name, "."+string(k)) {
				return true
			}
		}
	}
	return false
}

// OnChannel reports whether the event was published on channel
func (e Event) OnChannel(channel string) bool {
	for _, c := range e.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
