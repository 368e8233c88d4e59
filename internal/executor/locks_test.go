package executor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPathLocksSerializeSameKey(t *testing.T) {
	locks := newPathLocks()
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("/data/a.txt")
			n := active.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", got)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock table to drain, have %d", locks.size())
	}
}

func TestPathLocksIndependentKeys(t *testing.T) {
	locks := newPathLocks()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestPathLocksLockAllOrdersKeys(t *testing.T) {
	locks := newPathLocks()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys := []string{"/in/a.txt", "/out/a.txt"}
			if i%2 == 1 {
				keys = []string{"/out/a.txt", "/in/a.txt", "/out/a.txt"}
			}
			unlock := locks.LockAll(keys...)
			time.Sleep(100 * time.Microsecond)
			unlock()
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked on opposite key order")
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock table to drain, have %d", locks.size())
	}
}
