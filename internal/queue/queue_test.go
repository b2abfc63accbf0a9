package queue

import (
	"sync"
	"testing"
)

type sample struct {
	Seq   int
	Pitch float64
}

func TestQueue_New(t *testing.T) {
	q := New[sample]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushAndPop(t *testing.T) {
	q := New[sample]()

	zero := q.Pop()
	if zero.Seq != 0 || zero.Pitch != 0 {
		t.Errorf("expected zero value from empty queue, got %+v", zero)
	}

	q.Push(sample{Seq: 1, Pitch: -30})
	q.Push(sample{Seq: 2}, sample{Seq: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	first := q.Pop()
	if first.Seq != 1 || first.Pitch != -30 {
		t.Errorf("expected first pushed item, got %+v", first)
	}
	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Seq: 1}, sample{Seq: 2}, sample{Seq: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Seq: 1}, sample{Seq: 2}, sample{Seq: 3})

	result := q.GetAndEmpty()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].Seq != 1 || result[1].Seq != 2 || result[2].Seq != 3 {
		t.Errorf("unexpected order: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[sample]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			q.Push(sample{Seq: seq})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}

func TestQueue_ConcurrentGetAndEmpty(t *testing.T) {
	q := New[sample]()
	for i := 0; i < 100; i++ {
		q.Push(sample{Seq: i})
	}

	var wg sync.WaitGroup
	results := make(chan []sample, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected 100 items total, got %d", total)
	}
}

func TestQueue_OtherTypes(t *testing.T) {
	sq := New[string]()
	sq.Push("hold", "jog")
	if first := sq.Pop(); first != "hold" {
		t.Errorf("expected 'hold', got %q", first)
	}

	iq := New[int]()
	iq.Push(1, 2, 3, 4, 5)
	sum := 0
	for !iq.Empty() {
		sum += iq.Pop()
	}
	if sum != 15 {
		t.Errorf("expected sum 15, got %d", sum)
	}
}
