// Package metrics tracks counters for the rename engine, exposed over the
// control socket.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates counters across the daemon's lifetime.
type Collector struct {
	mu      sync.RWMutex
	started time.Time
	events  map[string]uint64

	recomputes       uint64
	renamesApplied   uint64
	renamesSkipped   uint64
	renameErrors     uint64
	focusRestores    uint64
	focusRestoreErrs uint64
}

// Snapshot is the serializable view of the current counters.
type Snapshot struct {
	Started          time.Time         `json:"started"`
	Events           map[string]uint64 `json:"events,omitempty"`
	Recomputes       uint64            `json:"recomputes"`
	RenamesApplied   uint64            `json:"renamesApplied"`
	RenamesSkipped   uint64            `json:"renamesSkipped"`
	RenameErrors     uint64            `json:"renameErrors"`
	FocusRestores    uint64            `json:"focusRestores"`
	FocusRestoreErrs uint64            `json:"focusRestoreErrors"`
}

// EventKinds lists the event counter keys in stable order.
func (s Snapshot) EventKinds() []string {
	kinds := make([]string, 0, len(s.Events))
	for kind := range s.Events {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		events:  make(map[string]uint64),
	}
}

// RecordEvent counts one received IPC event by kind:change.
func (c *Collector) RecordEvent(kind, change string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events[kind+":"+change]++
	c.mu.Unlock()
}

// RecordRecompute counts one full recompute pass.
func (c *Collector) RecordRecompute() {
	if c == nil {
		return
	}
	c.add(&c.recomputes)
}

// RecordRename counts one rename dispatched and acknowledged.
func (c *Collector) RecordRename() {
	if c == nil {
		return
	}
	c.add(&c.renamesApplied)
}

// RecordRenameSkipped counts one rename suppressed by the diff.
func (c *Collector) RecordRenameSkipped() {
	if c == nil {
		return
	}
	c.add(&c.renamesSkipped)
}

// RecordRenameError counts one rename the window manager rejected.
func (c *Collector) RecordRenameError() {
	if c == nil {
		return
	}
	c.add(&c.renameErrors)
}

// RecordFocusRestore counts one focus-fix restore command.
func (c *Collector) RecordFocusRestore() {
	if c == nil {
		return
	}
	c.add(&c.focusRestores)
}

// RecordFocusRestoreError counts one failed focus restore.
func (c *Collector) RecordFocusRestoreError() {
	if c == nil {
		return
	}
	c.add(&c.focusRestoreErrs)
}

// The nil check must happen in each exported method: taking a counter's
// address already dereferences a nil receiver.
func (c *Collector) add(counter *uint64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Started:          c.started,
		Recomputes:       c.recomputes,
		RenamesApplied:   c.renamesApplied,
		RenamesSkipped:   c.renamesSkipped,
		RenameErrors:     c.renameErrors,
		FocusRestores:    c.focusRestores,
		FocusRestoreErrs: c.focusRestoreErrs,
	}
	if len(c.events) > 0 {
		snap.Events = make(map[string]uint64, len(c.events))
		for kind, count := range c.events {
			snap.Events[kind] = count
		}
	}
	return snap
}
