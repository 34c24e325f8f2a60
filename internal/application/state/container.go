// Package state provides the shared session-user state container. Exactly one
// component, the reconciliation service, writes to it; everything else reads
// snapshots or subscribes to updates.
package state

import (
	"sync"

	"github.com/aimarket/aimarket-go/internal/domain/user"
)

// Snapshot is an immutable view of the reconciled session state. User is nil
// while signed out. Notice carries a user-facing message such as the
// provisioning-failure retry prompt.
type Snapshot struct {
	User   *user.SessionUser `json:"user"`
	Notice string            `json:"notice,omitempty"`
}

// clone deep-copies the snapshot so readers can never mutate shared state.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{Notice: s.Notice}
	if s.User != nil {
		u := *s.User
		if len(s.User.Interests) > 0 {
			u.Interests = make([]int64, len(s.User.Interests))
			copy(u.Interests, s.User.Interests)
		}
		out.User = &u
	}
	return out
}

// Container holds the current snapshot and fans updates out to subscribers.
// Slow subscribers get intermediate updates dropped, never stale ones held:
// each channel is drained of its pending value before the newest is offered.
type Container struct {
	mu          sync.RWMutex
	current     Snapshot
	subscribers map[int]chan Snapshot
	nextID      int
}

// NewContainer creates an empty signed-out container.
func NewContainer() *Container {
	return &Container{
		subscribers: make(map[int]chan Snapshot),
	}
}

// Get returns a copy of the current snapshot.
func (c *Container) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.clone()
}

// Set replaces the snapshot and notifies every subscriber.
func (c *Container) Set(snapshot Snapshot) {
	c.mu.Lock()
	c.current = snapshot.clone()
	chans := make([]chan Snapshot, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		chans = append(chans, ch)
	}
	next := c.current.clone()
	c.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- next:
		default:
			// Channel holds a stale pending value. Replace it with the
			// newest snapshot so subscribers always converge.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

// SetUser replaces the user portion of the snapshot, clearing any notice.
func (c *Container) SetUser(u *user.SessionUser) {
	c.Set(Snapshot{User: u})
}

// SetNotice publishes a signed-out snapshot carrying a user-facing message.
func (c *Container) SetNotice(notice string) {
	c.Set(Snapshot{Notice: notice})
}

// Subscribe registers for snapshot updates and returns the channel plus an
// unsubscribe func. The channel delivers the latest snapshot, not a history.
func (c *Container) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
	return ch, unsubscribe
}
