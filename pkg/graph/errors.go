package graph

import (
	"errors"
	"fmt"

	"github.com/penghs520/pgraph/pkg/model"
)

var (
	// ErrUnsupported marks a feature the engine does not implement.
	ErrUnsupported = errors.New("feature not supported")

	// ErrOperationOnQuery marks an operation incompatible with the
	// query kind it was applied to.
	ErrOperationOnQuery = errors.New("operation cannot be used with the given query")

	// ErrTxnDone marks use of a transaction after commit or abort.
	ErrTxnDone = errors.New("transaction already finished")
)

// VertexNotExistsError reports an operation referencing an id with no row.
type VertexNotExistsError struct {
	ID model.VertexID
}

func (e *VertexNotExistsError) Error() string {
	return fmt.Sprintf("vertex %d does not exist", e.ID)
}

// VertexAlreadyExistsError reports a create for an id that has a row.
type VertexAlreadyExistsError struct {
	ID model.VertexID
}

func (e *VertexAlreadyExistsError) Error() string {
	return fmt.Sprintf("vertex %d already exists", e.ID)
}

// EdgeAlreadyExistsError reports a strict create colliding with an
// existing forward entry.
type EdgeAlreadyExistsError struct {
	SrcID  model.VertexID
	Type   model.Identifier
	DestID model.VertexID
}

func (e *EdgeAlreadyExistsError) Error() string {
	return fmt.Sprintf("edge (%d, %s, %d) already exists", e.SrcID, e.Type, e.DestID)
}

// StorageError wraps a failure of the underlying KV. It is fatal to the
// current transaction and recoverable at the process level.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError wraps an encode/decode mismatch. It indicates a
// storage bug: it is logged and the transaction aborted.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return "serialization: " + e.Err.Error() }
func (e *SerializationError) Unwrap() error { return e.Err }

// LockError reports contention or poisoning on a shared resource;
// callers may retry with backoff.
type LockError struct {
	Msg string
}

func (e *LockError) Error() string { return "lock: " + e.Msg }
