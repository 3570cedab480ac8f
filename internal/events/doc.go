// Package events implements the named-event bus shared by models,
// collections and views.
//
// Callbacks take no arguments: an event only says that something happened,
// listeners read whatever state they need from the entity that owns the bus.
//
// DELIVERY RULES:
//   - Callbacks run synchronously on the goroutine that calls Trigger.
//   - Delivery order is registration order; duplicate registrations are all kept.
//   - Trigger delivers to the listeners registered when it was called. A
//     listener added during delivery sees the next trigger, not this one.
//   - Triggering a name nobody listens to is a no-op.
//   - A panicking callback is not isolated: the panic leaves Trigger and the
//     remaining callbacks for that call are skipped.
//
// Every registration returns a Subscription. Cancel releases it; views cancel
// their subscriptions when they are closed or re-rendered away.
package events
