package serialport

import (
	"bytes"
	"testing"
	"time"
)

func TestCorkUncorkCoalesces(t *testing.T) {
	mb := newMockBinding()
	p := newTestPort(t, mb)
	openTestPort(t, p)

	p.Cork()
	if !p.Corked() {
		t.Fatal("expected port to report corked")
	}

	first := make(chan error, 1)
	second := make(chan error, 1)
	p.WriteString("abc", func(err error) { first <- err })
	p.Write([]byte("123"), func(err error) { second <- err })

	if mb.writeCount() != 0 {
		t.Fatal("corked writes reached the binding")
	}

	p.Uncork()

	if err := waitErr(t, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := waitErr(t, second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if mb.writeCount() != 1 {
		t.Fatalf("expected exactly one binding write, got %d", mb.writeCount())
	}
	if got := mb.writtenBytes(); !bytes.Equal(got, []byte("abc123")) {
		t.Fatalf("expected abc123, got %q", got)
	}
}

func TestNestedCork(t *testing.T) {
	mb := newMockBinding()
	p := newTestPort(t, mb)
	openTestPort(t, p)

	p.Cork()
	p.Cork()

	done := make(chan error, 1)
	p.WriteString("held", func(err error) { done <- err })

	p.Uncork()
	time.Sleep(20 * time.Millisecond)
	if mb.writeCount() != 0 {
		t.Fatal("write flushed before the outer uncork")
	}

	p.Uncork()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("write: %v", err)
	}
	if mb.writeCount() != 1 {
		t.Fatalf("expected one binding write, got %d", mb.writeCount())
	}
}

func TestUncorkWithoutCorkIsNoOp(t *testing.T) {
	mb := newMockBinding()
	p := newTestPort(t, mb)
	openTestPort(t, p)

	p.Uncork()
	if p.Corked() {
		t.Fatal("uncork without cork left the port corked")
	}

	// The depth must not have gone negative: one cork still holds writes.
	p.Cork()
	p.WriteString("held", nil)
	time.Sleep(20 * time.Millisecond)
	if mb.writeCount() != 0 {
		t.Fatal("corked write reached the binding")
	}
	p.Uncork()
}

func TestUncorkWhileClosedDefersToOpen(t *testing.T) {
	mb := newMockBinding()
	p := newTestPort(t, mb)

	p.Cork()
	done := make(chan error, 1)
	p.WriteString("later", func(err error) { done <- err })
	p.Uncork()

	if mb.writeCount() != 0 {
		t.Fatal("write reached the binding while closed")
	}

	openTestPort(t, p)

	if err := waitErr(t, done); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := mb.writtenBytes(); !bytes.Equal(got, []byte("later")) {
		t.Fatalf("expected %q, got %q", "later", got)
	}
}

func TestCorkHoldsWritesOnOpenPort(t *testing.T) {
	mb := newMockBinding()
	p := newTestPort(t, mb)
	openTestPort(t, p)

	p.Cork()
	p.WriteString("queued", nil)
	time.Sleep(20 * time.Millisecond)
	if mb.writeCount() != 0 {
		t.Fatal("corked write reached the binding")
	}

	// Uncorking an open port flushes immediately.
	done := make(chan error, 1)
	p.WriteString("!", func(err error) { done <- err })
	p.Uncork()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := mb.writtenBytes(); !bytes.Equal(got, []byte("queued!")) {
		t.Fatalf("expected queued!, got %q", got)
	}
}

func TestBatchCoalesceOrderAndContent(t *testing.T) {
	pool := NewBufferPoolManager(&Metrics{})

	var q writeQueue
	q.push([]byte("one"), nil)
	q.push([]byte("two"), nil)
	q.push([]byte("three"), nil)

	batch := q.takeAll()
	if q.depth() != 0 {
		t.Fatalf("takeAll left %d entries queued", q.depth())
	}
	if batch.size() != len("onetwothree") {
		t.Fatalf("unexpected batch size %d", batch.size())
	}

	data, release := batch.coalesce(pool)
	defer release()
	if !bytes.Equal(data, []byte("onetwothree")) {
		t.Fatalf("coalesced to %q", data)
	}
}

func TestBatchCoalesceSingleAvoidsCopy(t *testing.T) {
	pool := NewBufferPoolManager(&Metrics{})

	payload := []byte("solo")
	var q writeQueue
	q.push(payload, nil)

	data, release := q.takeAll().coalesce(pool)
	defer release()
	if &data[0] != &payload[0] {
		t.Fatal("single-entry batch should pass the buffer through")
	}
}

func TestCoalesceCapsSingleOversizedWrite(t *testing.T) {
	pool := NewBufferPoolManager(&Metrics{})

	var q writeQueue
	q.push(make([]byte, AbsoluteMaxBufferSize+1), nil)

	data, release := q.takeAll().coalesce(pool)
	release()
	if data != nil {
		t.Fatalf("write of %d bytes bypassed the allocation cap", AbsoluteMaxBufferSize+1)
	}
}

func TestPushFrontPreservesOrder(t *testing.T) {
	var q writeQueue
	q.push([]byte("c"), nil)

	requeued := writeBatch{writes: []pendingWrite{
		{data: []byte("a")},
		{data: []byte("b")},
	}}
	q.pushFront(requeued)

	batch := q.takeAll()
	var got []byte
	for _, w := range batch.writes {
		got = append(got, w.data...)
	}
	if !bytes.Equal(got, []byte("abc")) {
		t.Fatalf("expected abc ordering, got %q", got)
	}
}

func TestQueueHighwater(t *testing.T) {
	var q writeQueue
	q.push([]byte("1"), nil)
	q.push([]byte("2"), nil)
	q.takeAll()
	q.push([]byte("3"), nil)

	if q.highwater != 2 {
		t.Fatalf("expected highwater 2, got %d", q.highwater)
	}
}
