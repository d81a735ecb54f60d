// Package engine orchestrates one chat turn across the two models of a
// thread. It resolves or assigns the thread, replays history, fans the
// user message out to both sides concurrently, forwards their content as
// it arrives and persists each side's answer once its stream settles.
//
// The Engine implements transport.ChatStreamer, transport.ThreadReader and
// transport.ThreadCreator.
package engine
