// Package manager assembles a replication node: the raft instance, its
// transports and stores, over the graph write-apply state machine.
package manager
