package kvstore

type batchOp struct {
	cf     ColumnFamily
	key    []byte
	value  []byte
	delete bool
}

// Batch accumulates puts and deletes across column families for one
// atomic write. A Batch is not safe for concurrent use.
type Batch struct {
	ops []batchOp
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages a write.
func (b *Batch) Put(cf ColumnFamily, key, value []byte) {
	b.ops = append(b.ops, batchOp{cf: cf, key: key, value: value})
}

// Delete stages a deletion. Deleting a missing key is a no-op.
func (b *Batch) Delete(cf ColumnFamily, key []byte) {
	b.ops = append(b.ops, batchOp{cf: cf, key: key, delete: true})
}

// Len reports the number of staged operations.
func (b *Batch) Len() int {
	return len(b.ops)
}
