package sessionkit

import (
	"sync"
	"time"
)

// renewalScheduler drives the periodic expiry check for one session. A fresh
// scheduler is created when a session is established and torn down on logout,
// so ticks never outlive the session that started them.
type renewalScheduler struct {
	interval time.Duration
	tick     func()
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newRenewalScheduler(interval time.Duration, tick func()) *renewalScheduler {
	return &renewalScheduler{
		interval: interval,
		tick:     tick,
		done:     make(chan struct{}),
	}
}

func (s *renewalScheduler) start() {
	s.wg.Add(1)
	go s.run()
}

func (s *renewalScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

// stop signals shutdown without waiting, so it is safe to call from inside
// the tick path itself.
func (s *renewalScheduler) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *renewalScheduler) wait() {
	s.wg.Wait()
}
