// Package api defines the core data types of the arena chat orchestrator.
//
// A thread pairs one user question with two model backends that answer side
// by side. This package holds the thread and message model, the model
// configuration records kept in the directory, the canonical chunk every
// response processor produces, and the newline-delimited JSON events written
// back to the client.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O.
//
// Core types:
//   - [Thread]: Persisted conversation with two per-side message logs
//   - [ModelConfig]: Directory entry describing one backend and its wire format
//   - [Chunk]: Normalized streaming output (content or reasoning)
//   - [OutboundEvent]: One line of the multiplexed response body
//   - [APIError]: Structured error with type, code, param, and message
package api
