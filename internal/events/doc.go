// Package events implements async event delivery for session lifecycle transitions.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Event] — structured lifecycle record with timestamp, type, subject, session, metadata.
//
// # Architecture boundaries
//
// This package owns event modeling and sink delivery. It does NOT decide which
// events to emit — that responsibility belongs to the Manager.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on session state.
//   - Import sessionkit or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package events
