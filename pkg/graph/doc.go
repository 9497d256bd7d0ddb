// Package graph is the single-node graph storage engine: vertex and edge
// stores over the ordered KV, the in-memory index with its LRU vertex
// cache, and the transactional write pipeline that keeps the two
// coherent.
package graph
