// Package snapshot creates and retains database checkpoints; installing
// one is done by graph.DB.InstallSnapshot.
// Snapshot directories are self-contained and shared with followers so
// they can bootstrap replicas.
package snapshot
