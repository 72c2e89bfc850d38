package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kind is a dot-separated name whose leading segments form the namespace
// subscribers filter on. The engine uses these namespaces:
//
//	session.  credential and auth lifecycle (session.credentials_changed, session.expired)
//	push.     push channel lifecycle (push.state_changed)
//	state.    reducer snapshot changes (state.changed)
//	message.  outbox progress (message.queued, message.send_ack, message.send_failed)
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
