package access

import "sync"

// Queue is a mutex-protected FIFO of scanned card identifiers. Any
// goroutine may Push; the server loop is the sole consumer. The lock
// is held only for the append or removal itself, never across I/O:
// draining pops one card at a time so a slow broadcast can never stall
// producers.
type Queue struct {
	mu     sync.Mutex
	cards  []CardID
	notify chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a card and wakes the consumer if it is waiting. It
// never blocks beyond lock acquisition.
func (q *Queue) Push(cid CardID) {
	q.mu.Lock()
	q.cards = append(q.cards, cid)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest card. ok is false when the queue
// is empty.
func (q *Queue) Pop() (cid CardID, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cards) == 0 {
		return nil, false
	}
	cid = q.cards[0]
	q.cards = q.cards[1:]
	return cid, true
}

// Len reports the number of queued cards.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cards)
}

// Notify returns a channel that receives a token after a Push. It is
// a wake-up hint for the consumer loop, not a per-item signal: several
// pushes may coalesce into one token, so consumers drain with Pop
// until it reports empty.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
