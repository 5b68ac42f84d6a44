// Package uasession defines the minimal session/channel abstractions the
// subscription and async-method engines depend on without owning: a
// Session only needs to accept outgoing responses and report whether it is
// still alive, matching the way a real binary-protocol stack would wire a
// secure channel into this core.
package uasession

import "github.com/coriolis-automation/opcuacore/internal/ua"

// SessionID opaquely identifies a session.
type SessionID ua.NodeId

// Response is a fully formed service response ready to be sent back to the
// client that owns a session, tagged with the request handle it answers.
type Response struct {
	RequestHandle uint32
	Body          any
}

// Session is the subset of session state the core reads: its identity, a
// way to hand it an outgoing response, and a liveness check used to decide
// whether a PublishResponse, notification or async-method result can still
// be delivered.
type Session interface {
	ID() SessionID
	SendResponse(Response) error
	Alive() bool
}

// Channel represents the secure channel a session is currently bound to.
// Async-method completions and publish responses are only deliverable while
// both the owning session and its channel are alive.
type Channel interface {
	Alive() bool
}
