package transport

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDedupKey(t *testing.T) {
	a := DedupKey("alice", "thread1", "hello")
	if a != DedupKey("alice", "thread1", "hello") {
		t.Error("key is not deterministic")
	}
	if a == DedupKey("alice", "thread1", "hello!") {
		t.Error("different messages share a key")
	}
	if a == DedupKey("alice", "thread2", "hello") {
		t.Error("different threads share a key")
	}
	if a == DedupKey("bob", "thread1", "hello") {
		t.Error("different owners share a key")
	}
	if !strings.HasPrefix(a, "alice\x00thread1\x00") {
		t.Errorf("key = %q, want owner and thread prefix", a)
	}
	// Field boundaries cannot be confused.
	if DedupKey("", "ab", "c") == DedupKey("", "a", "bc") {
		t.Error("boundary collision")
	}
	if DedupKey("a", "b", "c") == DedupKey("", "a\x00b", "c") {
		t.Error("owner boundary collision")
	}
}

func TestInFlightRegistryAcquireRelease(t *testing.T) {
	r := NewInFlightRegistry()

	if !r.TryAcquire("k", nil) {
		t.Fatal("first acquire should succeed")
	}
	if r.TryAcquire("k", nil) {
		t.Error("second acquire should fail while in flight")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Release("k")
	if !r.TryAcquire("k", nil) {
		t.Error("acquire after release should succeed")
	}
}

func TestInFlightRegistryCancelAll(t *testing.T) {
	r := NewInFlightRegistry()

	var cancelled atomic.Int32
	for i := range 3 {
		r.TryAcquire(fmt.Sprintf("k%d", i), func() { cancelled.Add(1) })
	}
	r.TryAcquire("nil-cancel", nil)

	if n := r.CancelAll(); n != 4 {
		t.Errorf("CancelAll = %d, want 4", n)
	}
	if got := cancelled.Load(); got != 3 {
		t.Errorf("cancel functions called %d times, want 3", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after CancelAll, want 0", r.Len())
	}
	if n := r.CancelAll(); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
	if !r.TryAcquire("k0", nil) {
		t.Error("acquire after CancelAll should succeed")
	}
}

func TestInFlightRegistryReleaseDoesNotCancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.TryAcquire("k", func() { cancelled = true })
	r.Release("k")

	if n := r.CancelAll(); n != 0 {
		t.Errorf("CancelAll = %d after Release, want 0", n)
	}
	if cancelled {
		t.Error("Release must not cancel")
	}
	// Unknown keys are fine.
	r.Release("unknown")
}

func TestInFlightRegistryConcurrentAcquire(t *testing.T) {
	r := NewInFlightRegistry()
	var winners atomic.Int32

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("same", nil) {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", winners.Load())
	}
}

func TestInFlightRegistryConcurrentDistinctKeys(t *testing.T) {
	r := NewInFlightRegistry()
	const n = 100

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.TryAcquire(fmt.Sprintf("k%d", i), nil)
		}(i)
	}
	wg.Wait()
	if r.Len() != n {
		t.Fatalf("Len = %d, want %d", r.Len(), n)
	}

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Release(fmt.Sprintf("k%d", i))
		}(i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("Len after release = %d", r.Len())
	}
}
