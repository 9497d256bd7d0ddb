// Package fsm dispatches replicated write operations to the graph
// engine. It implements the Raft finite state machine: every applied log
// entry is one engine transaction, and snapshots delegate to the
// checkpoint machinery.
package fsm
