package task

// DefaultBatchSize bounds how many identifiers a single batch carries.
// It matches the remote API's per-call item-count limit.
const DefaultBatchSize = 100

// BatchIter walks a range descriptor in fixed-size identifier batches.
// It is a stateless function of (start, end, size): creating a new iterator
// restarts the sequence, and nothing is materialized beyond one batch.
type BatchIter struct {
	next, end int64
	size      int
}

// Batches returns an iterator over the descriptor's identifier batches.
// A message descriptor yields no batches; send it directly instead.
func (d Descriptor) Batches(size int) *BatchIter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if d.Kind != KindRange {
		return &BatchIter{next: 1, end: 0, size: size}
	}
	return &BatchIter{next: d.Start, end: d.End, size: size}
}

// Next returns the next identifier batch, or (nil, false) once exhausted.
// Every batch carries size identifiers; the last one is clipped to the
// range end.
func (it *BatchIter) Next() ([]int64, bool) {
	if it.next > it.end {
		return nil, false
	}
	last := it.next + int64(it.size) - 1
	if last > it.end {
		last = it.end
	}
	batch := make([]int64, 0, last-it.next+1)
	for id := it.next; id <= last; id++ {
		batch = append(batch, id)
	}
	it.next = last + 1
	return batch, true
}

// Remaining reports how many identifiers have not been yielded yet.
func (it *BatchIter) Remaining() int64 {
	if it.next > it.end {
		return 0
	}
	return it.end - it.next + 1
}
