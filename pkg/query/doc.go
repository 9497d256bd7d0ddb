// Package query evaluates vertex queries over the graph engine: it
// plans the candidate set, applies a recursive predicate tree, sorts,
// paginates, and projects the requested attributes.
package query
