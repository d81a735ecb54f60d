// Package openaicompat streams completions from any OpenAI-compatible Chat
// Completions backend. It handles request serialization, SSE chunk parsing,
// reasoning_content deltas, and error mapping.
package openaicompat
