package access

import (
	"sync"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(CardID{1})
	q.Push(CardID{2})
	q.Push(CardID{3})

	for i := byte(1); i <= 3; i++ {
		cid, ok := q.Pop()
		if !ok || !cid.Equal(CardID{i}) {
			t.Fatalf("pop %d: got=%v ok=%v", i, cid, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop on empty queue reported ok")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100

	q := NewQueue()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(CardID{byte(p), byte(i)})
			}
		}(p)
	}
	wg.Wait()

	// One drain must deliver exactly N cards, and each producer's
	// cards in its own push order.
	next := make([]int, producers)
	total := 0
	for {
		cid, ok := q.Pop()
		if !ok {
			break
		}
		total++
		p, i := int(cid[0]), int(cid[1])
		if i != next[p] {
			t.Fatalf("producer %d out of order: got seq %d want %d", p, i, next[p])
		}
		next[p]++
	}
	if total != producers*perProducer {
		t.Fatalf("drained %d cards, want %d", total, producers*perProducer)
	}
}

func TestQueueNotifyCoalesces(t *testing.T) {
	q := NewQueue()
	q.Push(CardID{1})
	q.Push(CardID{2})

	select {
	case <-q.Notify():
	default:
		t.Fatalf("expected a pending wake-up token")
	}
	// Tokens coalesce; the consumer drains by Pop, not by counting.
	select {
	case <-q.Notify():
		t.Fatalf("second token should have coalesced")
	default:
	}
	if q.Len() != 2 {
		t.Fatalf("len=%d want 2", q.Len())
	}
}
