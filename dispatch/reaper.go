package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// reaper periodically evicts driver fixes that stopped being refreshed.
// Evictions are silent: no event is published for them.
type reaper struct {
	tracker    *Tracker
	interval   time.Duration
	staleAfter time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newReaper(t *Tracker, interval, staleAfter time.Duration) *reaper {
	return &reaper{
		tracker:    t,
		interval:   interval,
		staleAfter: staleAfter,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (r *reaper) start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

func (r *reaper) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *reaper) sweep() int {
	n := r.tracker.Sweep(r.staleAfter)
	if n > 0 {
		log.Debug().Int("evicted", n).Msg("stale driver locations evicted")
	}
	return n
}

// halt stops the loop and waits for it to exit. It does nothing if the loop never started.
func (r *reaper) halt() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	started := true
	r.startOnce.Do(func() { started = false })
	if started {
		<-r.done
	}
}
