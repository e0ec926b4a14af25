package memory

import (
	"sync"
	"time"
)

// janitor runs a periodic sweep on a dedicated goroutine so that expired
// entries fire their eviction callbacks even if they are never read again.
// Lazy expiration on Get remains the first line of defense; the janitor
// bounds how long a dead entry can linger.
type janitor struct {
	once sync.Once
	done chan struct{}
}

func startJanitor(interval time.Duration, sweep func()) *janitor {
	j := &janitor{done: make(chan struct{})}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				sweep()
			case <-j.done:
				return
			}
		}
	}()
	return j
}

// stop terminates the sweep goroutine. Idempotent.
func (j *janitor) stop() {
	j.once.Do(func() { close(j.done) })
}
