// Package readiness implements the startup handshake between the backend
// process and the frontend window.
//
// Both sides arrive once. When the arrival count reaches the threshold the
// gate emits "wake-up" exactly once, whatever the order or interleaving of
// the arrivals. Repeated arrivals from the same side are not counted again.
package readiness

import (
	"sync"
	"sync/atomic"

	"xxmm/internal/events"
	"xxmm/internal/logging"
)

// Threshold is the number of distinct arrivals that opens the gate
const Threshold = 2

// Gate is the two-party readiness barrier
type Gate struct {
	emitter events.Emitter

	count    atomic.Uint32
	backend  atomic.Bool
	frontend atomic.Bool
	fired    atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewGate creates a gate that emits through e
func NewGate(e events.Emitter) *Gate {
	return &Gate{
		emitter: e,
		done:    make(chan struct{}),
	}
}

// SignalBackendReady records that backend setup finished
func (g *Gate) SignalBackendReady() {
	if g.backend.CompareAndSwap(false, true) {
		g.count.Add(1)
		logging.Info("Backend ready", "arrivals", g.count.Load())
	}
	g.TryEmitWakeUp()
}

// SignalFrontendReady announces the frontend's first paint, then records it.
// The announcement goes out before the arrival is counted so that
// "main-window-ready" always precedes "wake-up".
func (g *Gate) SignalFrontendReady() {
	g.emitter.Emit(events.MainWindowReady, events.MainWindowReady)
	if g.frontend.CompareAndSwap(false, true) {
		g.count.Add(1)
		logging.Info("Main window ready", "arrivals", g.count.Load())
	}
	g.TryEmitWakeUp()
}

// TryEmitWakeUp emits "wake-up" if both sides arrived and it has not fired yet.
// It reports whether this call emitted.
func (g *Gate) TryEmitWakeUp() bool {
	if g.count.Load() < Threshold {
		return false
	}
	if !g.fired.CompareAndSwap(false, true) {
		return false
	}

	g.emitter.Emit(events.WakeUp, events.WakeUp)
	g.doneOnce.Do(func() { close(g.done) })
	logging.Info("Wake-up emitted")
	return true
}

// Arrivals returns the number of distinct sides that signalled
func (g *Gate) Arrivals() uint32 {
	return g.count.Load()
}

// Fired reports whether wake-up was emitted
func (g *Gate) Fired() bool {
	return g.fired.Load()
}

// Done is closed once wake-up has been emitted
func (g *Gate) Done() <-chan struct{} {
	return g.done
}
