// Package events publishes account lifecycle events.
//
// The account service emits an AccountEvent after each successful lifecycle
// operation. An EventEmitter fans events out to registered EventHandlers, one
// of which is KafkaPublisher. Emission is best-effort: callers log failures
// and never let them change an operation's outcome.
package events
