package serialport

// pendingWrite is one queued write request. It lives from the Write call
// that could not be sent immediately until the batch it joins is resolved.
type pendingWrite struct {
	data []byte
	cb   Callback
}

// writeQueue buffers writes while the port is not ready to send (closed,
// opening) or while corked. It is guarded by the owning Port's mutex.
type writeQueue struct {
	pending   []pendingWrite
	corkDepth int
	highwater int
}

func (q *writeQueue) push(data []byte, cb Callback) {
	q.pending = append(q.pending, pendingWrite{data: data, cb: cb})
	if len(q.pending) > q.highwater {
		q.highwater = len(q.pending)
	}
}

// pushFront requeues a batch ahead of anything queued since it was taken,
// preserving write order when a send raced a state change.
func (q *writeQueue) pushFront(b writeBatch) {
	if len(b.writes) == 0 {
		return
	}
	q.pending = append(b.writes, q.pending...)
	if len(q.pending) > q.highwater {
		q.highwater = len(q.pending)
	}
}

// takeAll removes and returns everything queued, in order.
func (q *writeQueue) takeAll() writeBatch {
	b := writeBatch{writes: q.pending}
	q.pending = nil
	return b
}

func (q *writeQueue) depth() int {
	return len(q.pending)
}

// writeBatch is an ordered set of pending writes that will resolve against
// one coalesced Binding write.
type writeBatch struct {
	writes []pendingWrite
}

func (b writeBatch) empty() bool {
	return len(b.writes) == 0
}

func (b writeBatch) size() int {
	total := 0
	for _, w := range b.writes {
		total += len(w.data)
	}
	return total
}

// coalesce concatenates the batch into one contiguous buffer. The release
// function must be called after the buffer has been handed to the Binding.
// A single-element batch is passed through without copying. Any batch over
// AbsoluteMaxBufferSize, single writes included, returns a nil buffer.
func (b writeBatch) coalesce(pool *BufferPoolManager) ([]byte, func()) {
	total := b.size()
	if total > AbsoluteMaxBufferSize {
		return nil, func() {}
	}
	if len(b.writes) == 1 {
		return b.writes[0].data, func() {}
	}
	buf, release := pool.GetPooledBuffer(total)
	if buf == nil {
		return nil, release
	}
	off := 0
	for _, w := range b.writes {
		off += copy(buf[off:], w.data)
	}
	return buf[:total], release
}
