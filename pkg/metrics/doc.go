// Package metrics exposes prometheus metrics for the graph engine:
// cache contents, LRU effectiveness, query health and raft role.
package metrics
