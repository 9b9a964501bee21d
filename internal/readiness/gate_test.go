package readiness

import (
	"sync"
	"testing"
	"time"

	"xxmm/internal/events"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWakeUpAfterBothSignals(t *testing.T) {
	tests := []struct {
		name  string
		order []func(g *Gate)
	}{
		{
			name:  "backend first",
			order: []func(g *Gate){(*Gate).SignalBackendReady, (*Gate).SignalFrontendReady},
		},
		{
			name:  "frontend first",
			order: []func(g *Gate){(*Gate).SignalFrontendReady, (*Gate).SignalBackendReady},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &events.Recorder{}
			g := NewGate(rec)

			tt.order[0](g)
			if rec.Count(events.WakeUp) != 0 {
				t.Fatal("wake-up emitted after a single signal")
			}
			if g.Fired() {
				t.Fatal("Fired() = true after a single signal")
			}

			tt.order[1](g)
			if got := rec.Count(events.WakeUp); got != 1 {
				t.Fatalf("wake-up count = %d, want 1", got)
			}
			if got := rec.Count(events.MainWindowReady); got != 1 {
				t.Errorf("main-window-ready count = %d, want 1", got)
			}
			select {
			case <-g.Done():
			default:
				t.Error("Done() not closed after wake-up")
			}
		})
	}
}

func TestMainWindowReadyPrecedesWakeUp(t *testing.T) {
	rec := &events.Recorder{}
	g := NewGate(rec)

	g.SignalBackendReady()
	g.SignalFrontendReady()

	recs := rec.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d events, want 2", len(recs))
	}
	if recs[0].Name != events.MainWindowReady || recs[1].Name != events.WakeUp {
		t.Errorf("order = [%s %s], want [%s %s]", recs[0].Name, recs[1].Name, events.MainWindowReady, events.WakeUp)
	}
}

func TestWakeUpFiresOnlyOnce(t *testing.T) {
	rec := &events.Recorder{}
	g := NewGate(rec)

	g.SignalBackendReady()
	g.SignalFrontendReady()
	// a reloaded frontend signals again
	g.SignalFrontendReady()
	g.SignalBackendReady()
	for i := 0; i < 5; i++ {
		if g.TryEmitWakeUp() {
			t.Fatal("TryEmitWakeUp() emitted after the gate fired")
		}
	}

	if got := rec.Count(events.WakeUp); got != 1 {
		t.Errorf("wake-up count = %d, want 1", got)
	}
	if got := g.Arrivals(); got != Threshold {
		t.Errorf("Arrivals() = %d, want %d", got, Threshold)
	}
	if got := rec.Count(events.MainWindowReady); got != 2 {
		t.Errorf("main-window-ready count = %d, want 2", got)
	}
}

func TestRepeatedFrontendSignalsDoNotOpenGate(t *testing.T) {
	rec := &events.Recorder{}
	g := NewGate(rec)

	g.SignalFrontendReady()
	g.SignalFrontendReady()

	if rec.Count(events.WakeUp) != 0 {
		t.Error("wake-up emitted without backend signal")
	}
	if g.Arrivals() != 1 {
		t.Errorf("Arrivals() = %d, want 1", g.Arrivals())
	}
}

func TestConcurrentSignals(t *testing.T) {
	for run := 0; run < 50; run++ {
		rec := &events.Recorder{}
		g := NewGate(rec)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(3)
			go func() { defer wg.Done(); <-start; g.SignalBackendReady() }()
			go func() { defer wg.Done(); <-start; g.SignalFrontendReady() }()
			go func() { defer wg.Done(); <-start; g.TryEmitWakeUp() }()
		}
		close(start)
		wg.Wait()

		if got := rec.Count(events.WakeUp); got != 1 {
			t.Fatalf("run %d: wake-up count = %d, want 1", run, got)
		}
	}
}

func TestDoneUnblocksWaiter(t *testing.T) {
	g := NewGate(&events.Recorder{})

	woke := make(chan struct{})
	go func() {
		<-g.Done()
		close(woke)
	}()

	g.SignalFrontendReady()
	g.SignalBackendReady()

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by wake-up")
	}
}
