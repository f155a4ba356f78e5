// Package control decodes control messages and turns them into device input.
package control

import (
	"sync"
	"time"
)

// DefaultPowerOffDelay lets a wake-up settle before the screen is forced off again.
const DefaultPowerOffDelay = 200 * time.Millisecond

// powerOffTimer runs a single pending delayed action; scheduling again replaces it.
type powerOffTimer struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func()
	timer *time.Timer
}

// newPowerOffTimer returns a timer that calls fire after delay.
func newPowerOffTimer(delay time.Duration, fire func()) *powerOffTimer {
	if delay <= 0 {
		delay = DefaultPowerOffDelay
	}
	return &powerOffTimer{delay: delay, fire: fire}
}

// Schedule arms the timer, superseding a pending run.
func (p *powerOffTimer) Schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, p.fire)
}

// Stop cancels a pending run.
func (p *powerOffTimer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
