package resource

import "fmt"

// Handle is an opaque reference to a host-side resource.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind identifies the resource a handle names. Handle numbers are only
// unique within a kind.
type Kind uint8

const (
	KindFields Kind = iota + 1
	KindOutgoingRequest
	KindFutureIncomingResponse
	KindIncomingResponse
	KindInputStream
	KindOutputStream
)

func (k Kind) String() string {
	switch k {
	case KindFields:
		return "fields"
	case KindOutgoingRequest:
		return "outgoing-request"
	case KindFutureIncomingResponse:
		return "future-incoming-response"
	case KindIncomingResponse:
		return "incoming-response"
	case KindInputStream:
		return "input-stream"
	case KindOutputStream:
		return "output-stream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EventType is a resource lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	// EventConsumed marks ownership passing to the host through an owning call.
	EventConsumed
	// EventDropped marks an explicit release by the owner.
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventConsumed:
		return "consumed"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by table values that need cleanup.
type Dropper interface {
	Drop()
}
