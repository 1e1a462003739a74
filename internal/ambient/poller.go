package ambient

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPollInterval = 2200 * time.Millisecond
	stopJoinTimeout     = 800 * time.Millisecond
)

// Poller runs the sensor on its own goroutine and keeps the latest reading
// as a snapshot. Readers never wait for a fresh sample; staleness is
// expected and fine.
type Poller struct {
	sensor   Sensor
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	latestLux *float64
	lastErr   error

	stopChan chan struct{}
	doneChan chan struct{}
	running  bool
}

// NewPoller creates a poller around the given sensor. A non-positive
// interval falls back to the default.
func NewPoller(sensor Sensor, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{
		sensor:   sensor,
		interval: interval,
		logger:   logger,
	}
}

// Start spins up the polling goroutine. Idempotent while running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	p.running = true
	go p.loop(p.stopChan, p.doneChan)
}

// Stop signals the polling goroutine and joins it with a bounded timeout.
// A join that outlives the timeout is logged and abandoned; shutdown always
// proceeds.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stopChan
	done := p.doneChan
	p.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		p.logger.Warn("Sensor poller did not stop in time, abandoning join")
	}
}

// Probe performs one synchronous sensor read, updating the snapshot. Used
// for the enable-time availability check.
func (p *Poller) Probe(ctx context.Context) (float64, bool) {
	lux, err := p.sensor.Read(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = err
		return 0, false
	}
	p.latestLux = &lux
	p.lastErr = nil
	return lux, true
}

// LatestLux returns the most recent reading, if any
func (p *Poller) LatestLux() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latestLux == nil {
		return 0, false
	}
	return *p.latestLux, true
}

// LastError returns the most recent sensor failure, if any
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			lux, err := p.sensor.Read(context.Background())

			p.mu.Lock()
			if err != nil {
				// Keep the previous reading; only record the error when we
				// have never seen a sample.
				if p.latestLux == nil {
					p.lastErr = err
				}
				p.mu.Unlock()
				p.logger.Debug("Sensor poll failed", "error", err)
				continue
			}
			p.latestLux = &lux
			p.lastErr = nil
			p.mu.Unlock()
		}
	}
}
