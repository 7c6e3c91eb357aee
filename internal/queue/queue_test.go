package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type row struct {
	Flag string
	Seq  int
}

func seqs(rows []row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Seq
	}
	return out
}

func TestQueue_New(t *testing.T) {
	q := New[row]()
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("expected nothing to drain, got %v", got)
	}
}

func TestQueue_PushDrain(t *testing.T) {
	q := New[row]()
	q.Push(row{Flag: "Kavala", Seq: 1})
	q.Push(row{Seq: 2}, row{Seq: 3})

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{1, 2, 3}, seqs(q.Drain()))
	assert.True(t, q.Empty())

	q.Push(row{Seq: 4})
	assert.Equal(t, []int{4}, seqs(q.Drain()))
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[row]()
	q.Push(row{Seq: 1}, row{Seq: 2})

	batch := q.Drain()
	q.Push(row{Seq: 3})
	q.Requeue(batch)

	assert.Equal(t, []int{1, 2, 3}, seqs(q.Drain()))
}

func TestQueue_RequeueDoesNotAliasBatch(t *testing.T) {
	q := New[row]()
	batch := make([]row, 2, 8)
	batch[0], batch[1] = row{Seq: 1}, row{Seq: 2}

	q.Push(row{Seq: 3})
	q.Requeue(batch)
	_ = append(batch, row{Seq: 99})

	assert.Equal(t, []int{1, 2, 3}, seqs(q.Drain()))
}

func TestQueue_RequeueEmpty(t *testing.T) {
	q := New[row]()
	q.Push(row{Seq: 1})
	q.Requeue(nil)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Bounded(t *testing.T) {
	q := NewBounded[row](3)
	q.Push(row{Seq: 1}, row{Seq: 2}, row{Seq: 3}, row{Seq: 4})

	assert.Equal(t, []int{2, 3, 4}, seqs(q.Drain()))
	assert.Equal(t, 1, q.Dropped())

	q.Push(row{Seq: 5}, row{Seq: 6})
	q.Requeue([]row{{Seq: 3}, {Seq: 4}})
	assert.Equal(t, []int{4, 5, 6}, seqs(q.Drain()))
	assert.Equal(t, 2, q.Dropped())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[row]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var drained []row

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			q.Push(row{Seq: seq})
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := q.Drain()
			mu.Lock()
			drained = append(drained, got...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	drained = append(drained, q.Drain()...)
	assert.Len(t, drained, 100)
}
