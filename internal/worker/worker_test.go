package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHaltClosesHaltCh(t *testing.T) {
	var w Worker
	select {
	case <-w.HaltCh():
		t.Fatal("HaltCh closed before Halt was called")
	default:
	}

	w.Halt()

	select {
	case <-w.HaltCh():
	default:
		t.Fatal("HaltCh not closed after Halt")
	}
}

func TestHaltIsIdempotent(t *testing.T) {
	var w Worker
	assert.NotPanics(t, func() {
		w.Halt()
		w.Halt()
		w.Halt()
	})
}

func TestWaitBlocksUntilGoroutinesReturn(t *testing.T) {
	var w Worker
	release := make(chan struct{})
	done := make(chan struct{})

	w.Go(func() {
		<-release
	})

	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the goroutine finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the goroutine finished")
	}
}

func TestGoRunsFunctionAndHaltChSignalsStop(t *testing.T) {
	var w Worker
	stopped := make(chan struct{})

	w.Go(func() {
		<-w.HaltCh()
		close(stopped)
	})

	w.Halt()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker loop did not observe Halt")
	}
	w.Wait()
}

// TestConcurrentFirstUseIsRaceFree exercises the lazy-init guard directly:
// many goroutines racing to be the first caller of HaltCh/Halt must all
// observe the same channel, and a Halt from any of them must be seen by
// every HaltCh() reader. Run with -race to catch a reintroduced bare
// nil-check.
func TestConcurrentFirstUseIsRaceFree(t *testing.T) {
	var w Worker
	const n = 64

	var wg sync.WaitGroup
	chans := make([]<-chan struct{}, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			chans[i] = w.HaltCh()
		}()
	}
	wg.Wait()

	w.Halt()

	first := chans[0]
	for i, ch := range chans {
		assert.Equal(t, first, ch, "goroutine %d observed a different haltCh", i)
		select {
		case <-ch:
		default:
			t.Fatalf("goroutine %d's haltCh was not closed by Halt", i)
		}
	}
}
