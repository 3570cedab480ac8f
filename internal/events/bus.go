package events

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Callback is a zero-argument event listener.
type Callback func()

type listener struct {
	cb Callback
}

// Bus is a registry of named events. The zero value is not usable; call New.
//
// The listener table maps an event name to an immutable slice. On and
// Cancel replace the slice (copy-on-write), so Trigger can read a snapshot
// and call out without holding any lock.
type Bus struct {
	table *xsync.MapOf[string, []*listener]
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{table: xsync.NewMapOf[string, []*listener]()}
}

// On appends cb to the listeners of name.
func (b *Bus) On(name string, cb Callback) *Subscription {
	l := &listener{cb: cb}
	b.table.Compute(name, func(old []*listener, loaded bool) ([]*listener, bool) {
		next := make([]*listener, len(old), len(old)+1)
		copy(next, old)
		return append(next, l), false
	})
	return NewSubscription(func() { b.remove(name, l) })
}

func (b *Bus) remove(name string, l *listener) {
	b.table.Compute(name, func(old []*listener, loaded bool) ([]*listener, bool) {
		if !loaded {
			return nil, true
		}
		next := make([]*listener, 0, len(old))
		for _, x := range old {
			if x != l {
				next = append(next, x)
			}
		}
		return next, len(next) == 0
	})
}

// Trigger calls every listener registered for name, in registration order.
func (b *Bus) Trigger(name string) {
	ls, ok := b.table.Load(name)
	if !ok {
		return
	}
	for _, l := range ls {
		l.cb()
	}
}

// Count returns the number of live listeners for name.
func (b *Bus) Count(name string) int {
	ls, _ := b.table.Load(name)
	return len(ls)
}

// Names returns the event names that currently have listeners.
func (b *Bus) Names() []string {
	var names []string
	b.table.Range(func(name string, ls []*listener) bool {
		if len(ls) > 0 {
			names = append(names, name)
		}
		return true
	})
	return names
}
