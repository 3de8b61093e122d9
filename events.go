package walletbridge

import "sync"

// Event names a provider notification.
type Event string

const (
	EventConnect         Event = "connect"
	EventDisconnect      Event = "disconnect"
	EventAccountsChanged Event = "accountsChanged"
	EventChainChanged    Event = "chainChanged"
)

// Events lists every event a provider emits.
func Events() []Event {
	return []Event{EventConnect, EventDisconnect, EventAccountsChanged, EventChainChanged}
}

// ConnectInfo is the payload of EventConnect.
type ConnectInfo struct {
	ChainID ChainID `json:"chainId"`
}

// Handler receives an event payload:
//   - EventConnect: ConnectInfo
//   - EventDisconnect: error (nil when the caller disconnected)
//   - EventAccountsChanged: []string
//   - EventChainChanged: ChainID
type Handler func(payload any)

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription uint64

type subscription struct {
	id      Subscription
	handler Handler
}

// Emitter dispatches events to subscribers in subscription order. The zero
// value is ready to use.
type Emitter struct {
	mu   sync.Mutex
	next Subscription
	subs map[Event][]subscription
}

// On registers h for event and returns a token for Off. Subscribing the same
// function twice registers it twice.
func (e *Emitter) On(event Event, h Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[Event][]subscription)
	}
	e.next++
	e.subs[event] = append(e.subs[event], subscription{id: e.next, handler: h})
	return e.next
}

// Off removes a subscription. It reports whether the subscription existed.
func (e *Emitter) Off(event Event, id Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.subs[event]
	for i, s := range list {
		if s.id == id {
			e.subs[event] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every handler registered for event, synchronously and in order.
// Handlers may subscribe or unsubscribe while being called; such changes take
// effect from the next emission.
func (e *Emitter) Emit(event Event, payload any) {
	e.mu.Lock()
	list := make([]subscription, len(e.subs[event]))
	copy(list, e.subs[event])
	e.mu.Unlock()

	for _, s := range list {
		s.handler(payload)
	}
}

// Count returns the number of handlers registered for event.
func (e *Emitter) Count(event Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[event])
}
