// Package storage defines the thread and model store contracts shared by the
// storage adapters, along with sentinel errors and owner context helpers.
//
// Storage adapters (memory, postgres) implement [ThreadStore] and
// [ModelStore]. The orchestrator and the model directory depend only on these
// interfaces.
package storage
