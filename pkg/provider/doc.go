// Package provider defines the protocol-agnostic streaming interface for
// model backends. Each adapter (openaicompat, bedrock) handles its own wire
// protocol and reports output as a channel of [Event] values, keeping
// backend details invisible to the response processors.
package provider
