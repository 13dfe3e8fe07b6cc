package engine

import "github.com/iancoleman/strcase"

// State is the phase of the request the engine is working on
type State uint8

const (
	Idle State = iota
	Decoding
	ResolvingAbis
	AwaitingApproval
	Signing
	Broadcasting
	Delivering
	Complete
	Declined
	Failed
)

var stateNames = []string{
	"Idle",
	"Decoding",
	"ResolvingAbis",
	"AwaitingApproval",
	"Signing",
	"Broadcasting",
	"Delivering",
	"Complete",
	"Declined",
	"Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return strcase.ToSnake(stateNames[s])
	}
	return "unknown"
}

// EventType identifies what happened to an ApprovalRequest
type EventType uint8

const (
	// EventPending is emitted when a request starts awaiting approval
	EventPending EventType = iota

	// EventCancelled is emitted when an undecided request is replaced
	// or cancelled
	EventCancelled

	// EventCompleted is emitted when a request has been accepted
	EventCompleted

	// EventDeclined is emitted when a request has been declined
	EventDeclined

	// EventFailed is emitted when a request that was already submitted
	// to the chain could not be completed
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventPending:
		return "pending"
	case EventCancelled:
		return "cancelled"
	case EventCompleted:
		return "completed"
	case EventDeclined:
		return "declined"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event notifies subscribers of changes of the live request
type Event struct {
	Type    EventType
	Request *ApprovalRequest
}
