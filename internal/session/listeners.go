package session

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Event describes a session change.
type Event int

const (
	// EventLogin fires when a new session is established.
	EventLogin Event = iota + 1
	// EventRefresh fires when the access token is replaced.
	EventRefresh
	// EventUserUpdated fires when the current user is re-fetched.
	EventUserUpdated
	// EventCleared fires on logout or when the session expires.
	EventCleared
)

func (e Event) String() string {
	switch e {
	case EventLogin:
		return "login"
	case EventRefresh:
		return "refresh"
	case EventUserUpdated:
		return "user_updated"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Listener is called after a session change with the new session.
type Listener func(Event, Session)

type subscription struct {
	id       uint64
	callback Listener
	active   atomic.Bool
}

// listeners holds session change subscriptions. Once its unsubscribe function
// has returned, a callback is skipped by every notification that has not yet
// reached it. A notification already running that callback is not waited
// for, so a callback may unsubscribe itself.
type listeners struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID atomic.Uint64
}

func newListeners() *listeners {
	return &listeners{subs: make(map[uint64]*subscription)}
}

// subscribe registers fn and returns the function that removes it.
func (l *listeners) subscribe(fn Listener) func() {
	id := l.nextID.Add(1)
	sub := &subscription{id: id, callback: fn}
	sub.active.Store(true)

	l.mu.Lock()
	l.subs[id] = sub
	l.mu.Unlock()

	return func() {
		l.unsubscribe(id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (l *listeners) unsubscribe(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sub, ok := l.subs[id]; ok {
		sub.active.Store(false)
		delete(l.subs, id)
	}
}

// notify calls every active callback in subscription order, outside the lock.
func (l *listeners) notify(ev Event, s Session) {
	l.mu.RLock()
	if len(l.subs) == 0 {
		l.mu.RUnlock()
		return
	}
	subs := make([]*subscription, 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub)
	}
	l.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(ev, s)
		}
	}
}

// clear removes all subscriptions.
func (l *listeners) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.subs {
		sub.active.Store(false)
	}
	l.subs = make(map[uint64]*subscription)
}
