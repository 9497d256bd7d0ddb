// Package kvstore wraps an ordered embedded key-value store (bbolt) with
// the capabilities the graph engine needs: named column families, atomic
// write batches spanning all of them, ordered prefix iteration, batched
// multi-get, and a checkpoint primitive for snapshots.
package kvstore
