package cache

import (
	"sync"
	"time"
)

// RunCleanupLoop runs cleanupFn every interval until stop is closed.
// Unlike a plain ticker loop it does not sweep on start: a fresh cache has
// nothing to expire.
func RunCleanupLoop(stop <-chan struct{}, interval time.Duration, cleanupFn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleanupFn()
		case <-stop:
			return
		}
	}
}

// startLoop runs RunCleanupLoop in a goroutine and returns an idempotent stop
// function that waits for the loop to exit.
func startLoop(interval time.Duration, cleanupFn func()) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunCleanupLoop(stop, interval, cleanupFn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}
