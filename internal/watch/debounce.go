// Package watch coalesces re-fill triggers and re-fills HTML files when they change.
package watch

import (
	"sync"
	"time"
)

// Debouncer runs fn once after triggers stop arriving for the quiet period.
// Runs never overlap; a trigger arriving during a run schedules one more run.
type Debouncer struct {
	quiet     time.Duration
	fn        func()
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// NewDebouncer starts a debouncer
func NewDebouncer(quiet time.Duration, fn func()) *Debouncer {
	d := &Debouncer{
		quiet:     quiet,
		fn:        fn,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Trigger requests a run. It never blocks.
func (d *Debouncer) Trigger() {
	select {
	case d.triggerCh <- struct{}{}:
	default:
	}
}

// Stop cancels any pending run and waits for a running one to finish
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	<-d.doneCh
}

func (d *Debouncer) loop() {
	defer close(d.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-d.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-d.triggerCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(d.quiet)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			d.fn()
		}
	}
}
