// Package audit buffers audit events and delivers them to a [Sink] on a
// background goroutine.
//
// The engine decides which events to emit; this package only relays them.
// Sinks provided here write to a channel, to an io.Writer as JSON lines, or
// to a zerolog logger. When the [Dispatcher] is configured with DropIfFull,
// events that do not fit the buffer are counted and discarded instead of
// blocking the caller.
package audit
