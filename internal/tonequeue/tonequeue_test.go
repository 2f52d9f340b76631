package tonequeue

import (
	"testing"
	"time"
)

func tone(freq int, d time.Duration) Tone {
	return Tone{FrequencyHz: freq, Duration: d}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(tone(600, time.Millisecond)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if got := q.Length(); got != 3 {
		t.Fatalf("length = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		if _, ok := q.Dequeue(); !ok {
			t.Fatalf("dequeue %d: expected a tone", i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("dequeue on empty queue should return false")
	}
}

func TestFullQueueInvariants(t *testing.T) {
	q := New(DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		if err := q.Enqueue(tone(600, time.Microsecond)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if !q.IsFull() {
		t.Fatal("queue should be full")
	}
	if err := q.Enqueue(tone(600, time.Microsecond)); err != ErrFullQueue {
		t.Fatalf("enqueue on full queue = %v, want ErrFullQueue", err)
	}

	q.Flush()
	if q.Length() != 0 {
		t.Fatalf("length after flush = %d, want 0", q.Length())
	}
	if q.Capacity() != DefaultCapacity {
		t.Fatalf("capacity after flush = %d, want %d", q.Capacity(), DefaultCapacity)
	}
	if err := q.WaitForEmpty(); err != nil {
		t.Fatalf("WaitForEmpty after flush: %v", err)
	}
}

func TestInvalidArgumentDoesNotMutate(t *testing.T) {
	q := New(4)
	if err := q.Enqueue(tone(600, -time.Millisecond)); err != ErrInvalidArgument {
		t.Fatalf("negative duration = %v, want ErrInvalidArgument", err)
	}
	if err := q.Enqueue(tone(5000, time.Millisecond)); err != ErrInvalidArgument {
		t.Fatalf("out of range frequency = %v, want ErrInvalidArgument", err)
	}
	if q.Length() != 0 {
		t.Fatal("invalid enqueue must not mutate the queue")
	}
}

func TestLowLevelCallbackFiresOnceOnDownwardCrossing(t *testing.T) {
	q := New(16)
	fired := 0
	q.RegisterLowLevelCallback(2, func(ctx any) { fired++ }, nil)

	for i := 0; i < 5; i++ {
		_ = q.Enqueue(tone(600, time.Millisecond))
	}
	for i := 0; i < 5; i++ {
		q.Dequeue()
	}
	if fired != 1 {
		t.Fatalf("low level callback fired %d times, want 1", fired)
	}
}

func TestForeverToneLoopsUntilDisplaced(t *testing.T) {
	q := New(4)
	forever := Tone{FrequencyHz: 600, Duration: time.Millisecond, Forever: true}
	if err := q.Enqueue(forever); err != nil {
		t.Fatalf("enqueue forever: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, ok := q.Dequeue()
		if !ok || !got.Forever {
			t.Fatalf("dequeue %d should keep returning the forever tone", i)
		}
	}
	if q.Length() != 1 {
		t.Fatalf("length while forever tone active = %d, want 1", q.Length())
	}

	displacer := tone(700, 2*time.Millisecond)
	if err := q.Enqueue(displacer); err != nil {
		t.Fatalf("enqueue displacer: %v", err)
	}
	if q.Length() != 2 {
		t.Fatalf("length after displacing enqueue = %d, want 2", q.Length())
	}

	first, ok := q.Dequeue()
	if !ok || first.FrequencyHz != 700 {
		t.Fatalf("first dequeue after displacement = %+v, want the displacer tone", first)
	}
	second, ok := q.Dequeue()
	if !ok || !second.Forever {
		t.Fatal("forever tone should still be at the tail after displacement")
	}
}

func TestWaitForToneUnblocksOnDequeue(t *testing.T) {
	q := New(4)
	_ = q.Enqueue(tone(600, time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- q.WaitForTone() }()

	time.Sleep(10 * time.Millisecond)
	q.Dequeue()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForTone returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForTone did not unblock after a dequeue")
	}
}

func TestCloseCancelsWaiters(t *testing.T) {
	q := New(4)
	done := make(chan error, 1)
	go func() { done <- q.WaitForEmpty() }()

	_ = q.Enqueue(tone(600, time.Hour)) // keep the queue non-empty
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if err != ErrCancelled {
			t.Fatalf("WaitForEmpty after Close = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiter")
	}
}
