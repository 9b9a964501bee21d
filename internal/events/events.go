// Package events carries backend notifications to the frontend and to any
// other listener attached to the bus.
package events

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Event names shared with the frontend
const (
	MainWindowReady  = "main-window-ready"
	WakeUp           = "wake-up"
	Snack            = "snack"
	DownloadProgress = "download-progress"
	ProgramOutput    = "program-output"
	ProgramExit      = "program-exit"
	FSChange         = "fs-change"
)

// Emitter sends a named event with an optional payload
type Emitter interface {
	Emit(name string, data ...interface{})
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(name string, data ...interface{})

// Emit calls f
func (f EmitterFunc) Emit(name string, data ...interface{}) {
	f(name, data...)
}

// RuntimeEmitter emits through the Wails runtime of a running window
type RuntimeEmitter struct {
	ctx context.Context
}

// NewRuntimeEmitter binds an emitter to the Wails startup context
func NewRuntimeEmitter(ctx context.Context) *RuntimeEmitter {
	return &RuntimeEmitter{ctx: ctx}
}

// Emit implements Emitter
func (e *RuntimeEmitter) Emit(name string, data ...interface{}) {
	runtime.EventsEmit(e.ctx, name, data...)
}

// Bus fans every event out to all attached emitters
type Bus struct {
	mu    sync.RWMutex
	sinks map[string]Emitter
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{sinks: make(map[string]Emitter)}
}

// Attach registers a sink under name, replacing any previous one
func (b *Bus) Attach(name string, e Emitter) {
	b.mu.Lock()
	b.sinks[name] = e
	b.mu.Unlock()
}

// Detach removes a sink
func (b *Bus) Detach(name string) {
	b.mu.Lock()
	delete(b.sinks, name)
	b.mu.Unlock()
}

// Emit implements Emitter
func (b *Bus) Emit(name string, data ...interface{}) {
	b.mu.RLock()
	sinks := make([]Emitter, 0, len(b.sinks))
	for _, s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Emit(name, data...)
	}
}

// Record is one captured event
type Record struct {
	Name string
	Data []interface{}
}

// Recorder keeps every event it receives
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Emit implements Emitter
func (r *Recorder) Emit(name string, data ...interface{}) {
	r.mu.Lock()
	r.records = append(r.records, Record{Name: name, Data: data})
	r.mu.Unlock()
}

// Records returns a copy of the captured events
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Count returns how many events named name were captured
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Name == name {
			n++
		}
	}
	return n
}
