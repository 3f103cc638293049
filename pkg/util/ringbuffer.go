package util

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Lock-free ring buffer for a single producer and a single consumer.
// The transport uses it as the pending-request queue on an outbound
// connection: the write loop enqueues in submission order, the read loop
// dequeues as responses arrive, so wire FIFO order is preserved without
// locking between the two goroutines.
//
// - the producer only advances tail
// - the consumer only advances head
//
// Entries removed out of order (request timeout or abandonment) leave
// holes; CleanUp sweeps expired holes from the head.

var (
	errQueueFull    = errors.New("queue full")
	errQueueEmpty   = errors.New("queue empty")
	errIdOutOfRange = errors.New("id out of valid range")
	errIdMismatch   = errors.New("id does not match")
)

type QueItem interface {
	OnCleanup()
	OnExpiration()
	Deadline() (deadline time.Time)
	ResetDeadline()
	SetId(id uint32)
	GetId() uint32
	SetInUse(flag bool)
	SetQueTimeout(t time.Duration)
	GetQueTimeout() (t time.Duration)
	IsInUse() bool
}

// QueItemBase provides the bookkeeping part of QueItem; embed it and
// implement OnCleanup/OnExpiration.
type QueItemBase struct {
	id       uint32
	flag     uint32
	timeout  time.Duration
	deadline time.Time
}

func (q *QueItemBase) SetId(id uint32) {
	q.id = id
}

func (q *QueItemBase) GetId() uint32 {
	return q.id
}

func (q *QueItemBase) SetQueTimeout(t time.Duration) {
	q.timeout = t
}

func (q *QueItemBase) GetQueTimeout() time.Duration {
	return q.timeout
}

func (q *QueItemBase) Deadline() (deadline time.Time) {
	return q.deadline
}

func (q *QueItemBase) SetDeadline(d time.Time) {
	q.deadline = d
}

func (q *QueItemBase) ResetDeadline() {
	if q.GetQueTimeout() != 0 {
		q.deadline = time.Now().Add(q.GetQueTimeout())
	}
}

func (q *QueItemBase) SetInUse(flag bool) {
	if flag {
		atomic.StoreUint32(&q.flag, 1)
	} else {
		atomic.StoreUint32(&q.flag, 0)
	}
}

func (q *QueItemBase) IsInUse() bool {
	flag := atomic.LoadUint32(&q.flag)
	return flag != 0
}

type RingBuffer struct {
	head     uint32 // atomic access, updated by the consumer
	tail     uint32 // atomic access, updated by the producer
	capacity uint32 // qsize + extra + 1
	buf      []QueItem
	seqId    uint32
	qsize    uint32 // queue size exposed to the user
	extra    uint32 // headroom kept so Remove holes do not stall the producer
	cursize  int32
}

func NewRingBuffer(size uint32) *RingBuffer {
	return NewRingBufferWithExtra(size, 20)
}

func NewRingBufferWithExtra(size uint32, extraPct uint32) *RingBuffer {
	extra := size * extraPct / 100
	capacity := size + extra + 1
	rb := &RingBuffer{
		head:     0,
		tail:     0,
		capacity: capacity,
		buf:      make([]QueItem, capacity, capacity),
		seqId:    0,
		qsize:    size,
		extra:    extra,
		cursize:  0,
	}

	return rb
}

// EnQueue appends item and returns the sequence id assigned to it. Only
// the producer goroutine may call it.
func (rb *RingBuffer) EnQueue(item QueItem) (id uint32, err error) {
	item.ResetDeadline()

	curTail := atomic.LoadUint32(&rb.tail)
	cursize := atomic.LoadInt32(&rb.cursize)
	nextTail := (curTail + 1) % rb.capacity
	if (nextTail != atomic.LoadUint32(&rb.head)) && (cursize < int32(rb.qsize)) {
		item.SetId(rb.seqId)
		rb.buf[curTail] = item
		atomic.AddInt32(&rb.cursize, 1)
		atomic.StoreUint32(&rb.tail, nextTail)
		id = rb.seqId
		atomic.AddUint32(&rb.seqId, 1)
		return id, nil
	}
	return 0, errQueueFull
}

// PeekFront returns the oldest entry without removing it. Only the
// consumer goroutine may call it.
func (rb *RingBuffer) PeekFront() (item QueItem, err error) {
	curHead := atomic.LoadUint32(&rb.head)
	if curHead == atomic.LoadUint32(&rb.tail) {
		return nil, errQueueEmpty
	}
	item = rb.buf[curHead]
	if item == nil {
		return nil, errQueueEmpty
	}
	return item, nil
}

// DeQueue pops the oldest entry. Only the consumer goroutine may call it.
func (rb *RingBuffer) DeQueue() (item QueItem, err error) {
	curHead := atomic.LoadUint32(&rb.head)
	if curHead == atomic.LoadUint32(&rb.tail) {
		return nil, errQueueEmpty
	}

	item = rb.buf[curHead]
	if item != nil {
		rb.buf[curHead] = nil
		atomic.AddInt32(&rb.cursize, -1)
	}
	atomic.StoreUint32(&rb.head, (curHead+1)%rb.capacity)
	return item, nil
}

// Remove takes out the entry with the given sequence id, which may sit
// anywhere between head and tail. Only the consumer goroutine may call it.
func (rb *RingBuffer) Remove(id uint32) (item QueItem, err error) {
	curHead := atomic.LoadUint32(&rb.head)
	curTail := atomic.LoadUint32(&rb.tail)
	if curHead == curTail {
		return nil, errQueueEmpty
	}

	pos := id % rb.capacity
	if (id+rb.capacity <= atomic.LoadUint32(&rb.seqId)) ||
		(curHead < curTail && (pos < curHead || curTail <= pos)) ||
		(curTail < curHead && (curTail <= pos && pos < curHead)) {
		rb.CleanUp()
		return nil, errIdOutOfRange
	}

	item = rb.buf[pos]
	if item != nil {
		rb.buf[pos] = nil
		atomic.AddInt32(&rb.cursize, -1)
	}

	// move head past the hole if we just opened one at the front
	if pos == rb.head {
		atomic.StoreUint32(&rb.head, (curHead+1)%rb.capacity)
	}
	rb.CleanUp()

	if item.GetId() != id {
		// should never happen given the range check above
		return nil, errIdMismatch
	}
	return item, nil
}

func (rb *RingBuffer) GetSize() uint32 {
	return uint32(atomic.LoadInt32(&rb.cursize))
}

func (rb *RingBuffer) IsEmpty() bool {
	return atomic.LoadUint32(&rb.head) == atomic.LoadUint32(&rb.tail)
}

func (rb *RingBuffer) IsFull() bool {
	idx := atomic.LoadUint32(&rb.tail)
	nextTail := (idx + 1) % rb.capacity
	cursize := atomic.LoadInt32(&rb.cursize)
	return nextTail == atomic.LoadUint32(&rb.head) || cursize >= int32(rb.qsize)
}

// only called by the consumer (head side)
func (rb *RingBuffer) updateHead() {
	curTail := atomic.LoadUint32(&rb.tail)
	for curTail != rb.head && rb.buf[rb.head] == nil {
		atomic.StoreUint32(&rb.head, (rb.head+1)%rb.capacity)
	}
}

func (rb *RingBuffer) topExpired(now time.Time) bool {
	curHead := atomic.LoadUint32(&rb.head)
	if curHead == atomic.LoadUint32(&rb.tail) {
		return false
	}

	item := rb.buf[curHead]
	if item == nil {
		return true
	}

	return (!item.IsInUse()) && item.Deadline().Before(now)
}

// CleanUp expires timed-out entries at the head and skips holes left by
// Remove. It reports whether any entry actually expired, so callers that
// rely on strict FIFO pairing can tear the connection down instead of
// matching responses against the wrong requests. Only the consumer
// goroutine may call it.
func (rb *RingBuffer) CleanUp() (expired bool) {
	now := time.Now()
	for rb.topExpired(now) {
		if rb.buf[rb.head] != nil {
			item, _ := rb.DeQueue()
			if item != nil {
				item.OnExpiration()
				expired = true
			}
		} else {
			rb.updateHead()
		}
	}
	rb.updateHead()
	return expired
}

// CleanAll drains every entry, invoking OnCleanup on each. Used when the
// owning connection shuts down.
func (rb *RingBuffer) CleanAll() {
	for !rb.IsEmpty() {
		if rb.buf[rb.head] != nil {
			item, _ := rb.DeQueue()
			if item != nil {
				item.OnCleanup()
			}
		}
		rb.updateHead()
	}
}

func (rb *RingBuffer) WriteStats(w io.Writer) {
	fmt.Fprintf(w, "head:%d, tail:%d, capacity:%d, seqId:%d, qsize:%d, extra:%d",
		rb.head, rb.tail, rb.capacity, rb.seqId, rb.qsize, rb.extra)
}
