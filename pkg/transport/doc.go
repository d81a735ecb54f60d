// Package transport defines the contract between the HTTP layer and the
// chat orchestrator.
//
// A [ChatStreamer] runs one chat turn and writes its output through an
// [EventWriter]; a [ThreadReader] serves the read-only thread routes. The
// HTTP adapter in the http subpackage owns the wire format.
//
// # Middleware
//
// [Middleware] wraps a ChatStreamer with cross-cutting concerns. Built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID)
// and structured logging via log/slog.
//
// # Deduplication
//
// [InFlightRegistry] is the per-process guard against running the same
// (owner, thread, message) turn twice at once. Keys are built with
// [DedupKey]. On shutdown [InFlightRegistry.CancelAll] stops running turns.
package transport
