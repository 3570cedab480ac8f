package events

import "sync"

// Subscription is the handle returned for one listener registration.
// The zero value is a valid, already released subscription.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a release function. Used by other registries
// (the dom listener table) so every handle in the framework looks the same.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel releases the registration. Safe to call more than once and from
// any goroutine.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Group collects subscriptions that share a lifetime.
type Group struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Add records sub in the group.
func (g *Group) Add(sub *Subscription) {
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

// Len returns the number of subscriptions currently held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// CancelAll releases every subscription in the group and empties it.
func (g *Group) CancelAll() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}
