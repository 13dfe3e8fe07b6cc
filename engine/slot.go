package engine

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// slot holds the single live ApprovalRequest. Every replacement bumps
// the generation, which lets work started for a request find out that
// the request is no longer live
type slot struct {
	mu          sync.Mutex
	current     *ApprovalRequest
	generation  uint64
	state       State
	cancelBegin context.CancelFunc
	subscribers map[chan Event]struct{}
}

func newSlot() *slot {
	return &slot{subscribers: make(map[chan Event]struct{})}
}

func (s *slot) get() (*ApprovalRequest, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.generation
}

// pending returns the live request if it still waits for a decision.
// A request that was accepted or declined without being cleared is not
// pending
func (s *slot) pending() (*ApprovalRequest, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.state != AwaitingApproval {
		return nil, 0, false
	}
	return s.current, s.generation, true
}

func (s *slot) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *slot) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// isLive returns true if the request of generation gen is still the
// live one
func (s *slot) isLive(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.generation == gen
}

// replace makes req the live request. The previous one, if any, is
// reported as cancelled. Nothing is replaced if the begin that built
// req was cancelled
func (s *slot) replace(ctx context.Context, req *ApprovalRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	if s.current != nil {
		s.notify(Event{Type: EventCancelled, Request: s.current})
	}
	s.current = req
	s.generation++
	s.state = AwaitingApproval
	s.notify(Event{Type: EventPending, Request: req})
	return true
}

// finish sets the final state of the request of generation gen and
// emits ev. The request is cleared if clear is set
func (s *slot) finish(gen uint64, state State, ev EventType, clear bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || s.current == nil {
		return
	}

	s.state = state
	s.notify(Event{Type: ev, Request: s.current})
	if clear {
		s.current = nil
		s.generation++
	}
}

// fail restores the state after an operation on the live request, or
// a begin, failed
func (s *slot) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.state = AwaitingApproval
	} else {
		s.state = Failed
	}
}

// cancel clears the live request and aborts a begin in progress
func (s *slot) cancel() *ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelBegin != nil {
		s.cancelBegin()
		s.cancelBegin = nil
	}

	req := s.current
	if req != nil {
		s.notify(Event{Type: EventCancelled, Request: req})
	}
	s.current = nil
	s.generation++
	s.state = Idle
	return req
}

func (s *slot) beginStarted(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelBegin = cancel
	s.state = Decoding
}

func (s *slot) beginDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBegin != nil {
		s.cancelBegin()
		s.cancelBegin = nil
	}
}

func (s *slot) subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	s.subscribers[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
}

// notify must be called with the lock held. Subscribers that do not
// keep up miss events
func (s *slot) notify(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
