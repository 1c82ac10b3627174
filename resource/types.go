package resource

import "fmt"

// Handle refers to a value in a table. Handle 0 never resolves.
type Handle uint32

// TypeID tags a value with the kind of state it carries.
type TypeID uint32

const (
	TypeInvalid TypeID = iota
	// TypeStreamBaton is the Go state behind a callback stream.
	TypeStreamBaton
	// TypeCompressedBaton is the state of a compressing stream filter.
	TypeCompressedBaton
)

func (t TypeID) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeStreamBaton:
		return "stream-baton"
	case TypeCompressedBaton:
		return "compressed-baton"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// EventType identifies a lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

// Event describes a lifecycle transition of one handle.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is implemented by values that release state when dropped.
type Dropper interface {
	Drop()
}
