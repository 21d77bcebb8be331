package eventbus

import (
	"container/heap"

	"github.com/aurabot/aura-core/core/events"
)

// queueItem pairs an event with its admission sequence number. The sequence
// breaks priority ties in insertion order, which wall-clock timestamps
// cannot guarantee at coarse resolution.
type queueItem struct {
	event *events.Event
	seq   uint64
}

// eventHeap orders items by descending priority, then ascending sequence.
type eventHeap []queueItem

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Priority != h[j].event.Priority {
		return h[i].event.Priority > h[j].event.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queueItem{}
	*h = old[:n-1]
	return item
}

// eventQueue is a bounded priority queue. It is not safe for concurrent
// use; the bus serializes access behind its own mutex.
type eventQueue struct {
	heap     eventHeap
	capacity int
	nextSeq  uint64
}

func newEventQueue(capacity int) *eventQueue {
	q := &eventQueue{capacity: capacity}
	heap.Init(&q.heap)
	return q
}

// push admits the event, or reports false when the queue is full.
func (q *eventQueue) push(e *events.Event) bool {
	if len(q.heap) >= q.capacity {
		return false
	}
	heap.Push(&q.heap, queueItem{event: e, seq: q.nextSeq})
	q.nextSeq++
	return true
}

// pop removes and returns the highest-priority event.
func (q *eventQueue) pop() (*events.Event, bool) {
	if len(q.heap) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.heap).(queueItem)
	return item.event, true
}

func (q *eventQueue) len() int { return len(q.heap) }
