// Package processor turns a backend's raw stream into canonical chunks.
//
// Every response format (plain deltas, harmony channel markup, inline
// <think> reasoning, Bedrock event streams) is handled by a [Processor]
// whose ProcessStream returns a lazy, single-pass sequence of [api.Chunk].
// [Set.Select] picks the processor for a model's declared format and falls
// back to the standard processor.
package processor
