// Package model defines the core data types of the property graph:
// vertices (cards), edges (links), interned identifiers, field values,
// and the query records consumed by the engine.
package model
